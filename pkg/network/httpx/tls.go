package httpx

import "golang.org/x/crypto/acme/autocert"

func newCertManager(host string) *autocert.Manager {
	m := autocert.Manager{
		Prompt: autocert.AcceptTOS,
		Cache:  autocert.DirCache("assets/cache"),
	}
	if host != "" {
		m.HostPolicy = autocert.HostWhitelist(host)
	}
	return &m
}

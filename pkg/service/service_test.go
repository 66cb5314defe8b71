package service

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name string
	log  *[]string
	err  error
}

func (f fakeService) Run() { *f.log = append(*f.log, "run "+f.name) }
func (f fakeService) Shutdown(context.Context) error {
	*f.log = append(*f.log, "stop "+f.name)
	return f.err
}

func TestGroup(t *testing.T) {
	var log []string
	boom := errors.New("boom")

	g := Group{}
	g.Add(fakeService{name: "a", log: &log}, nil, fakeService{name: "b", log: &log, err: boom},
		fakeService{name: "c", log: &log, err: context.Canceled})
	if g.Len() != 3 {
		t.Fatalf("nil service was added")
	}
	g.Start()
	err := g.Shutdown(context.Background())

	expected := []string{"run a", "run b", "run c", "stop c", "stop b", "stop a"}
	if len(log) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, log)
	}
	for i := range expected {
		if log[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, log)
			break
		}
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected the failure to be reported, got %v", err)
	}
}

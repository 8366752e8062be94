package askuser

import (
	"context"
	"testing"
	"time"
)

func TestAskQuestionsReceivesRespondedAnswers(t *testing.T) {
	c := New()

	done := make(chan map[string]string, 1)
	go func() {
		done <- c.AskQuestions(context.Background(), []Question{{ID: "q1", Prompt: "continue?", Options: []string{"yes", "no"}}})
	}()

	req := <-c.Requests()
	if len(req.Questions) != 1 || req.Questions[0].ID != "q1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !c.Respond(req.RequestID, map[string]string{"q1": "yes"}) {
		t.Fatal("expected Respond to succeed for a pending request")
	}

	select {
	case answers := <-done:
		if answers["q1"] != "yes" {
			t.Fatalf("unexpected answers: %+v", answers)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for AskQuestions to return")
	}
}

func TestRespondUnknownRequestReturnsFalse(t *testing.T) {
	c := New()
	if c.Respond("does-not-exist", map[string]string{}) {
		t.Fatal("expected Respond on an unknown request to return false")
	}
}

func TestDisposeCompletesPendingRequestsWithEmptyAnswers(t *testing.T) {
	c := New()

	done := make(chan map[string]string, 1)
	go func() {
		done <- c.AskQuestions(context.Background(), []Question{{ID: "q1", Prompt: "x"}})
	}()
	<-c.Requests()

	c.Dispose()

	select {
	case answers := <-done:
		if len(answers) != 0 {
			t.Fatalf("expected empty answers after Dispose, got %+v", answers)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Dispose to unblock AskQuestions")
	}
}

func TestAskQuestionsReturnsEmptyOnContextCancel(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan map[string]string, 1)
	go func() {
		done <- c.AskQuestions(ctx, []Question{{ID: "q1", Prompt: "x"}})
	}()
	<-c.Requests()
	cancel()

	select {
	case answers := <-done:
		if len(answers) != 0 {
			t.Fatalf("expected empty answers on cancellation, got %+v", answers)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation to unblock AskQuestions")
	}
}

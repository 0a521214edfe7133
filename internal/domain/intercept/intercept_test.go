package intercept

import (
	"testing"
	"time"
)

func TestGate_Disabled_PassesThrough(t *testing.T) {
	t.Parallel()
	g := New(time.Second)

	decision, timedOut := g.Intercept(RequestView{Method: "GET", URL: "http://example.com/"})
	if decision.Action != ActionForward || timedOut {
		t.Fatalf("decision = %+v, timedOut = %v", decision, timedOut)
	}
}

func TestGate_Enabled_SubmitForward(t *testing.T) {
	t.Parallel()
	g := New(time.Second)
	g.SetEnabled(true)

	done := make(chan Decision, 1)
	go func() {
		d, _ := g.Intercept(RequestView{Method: "POST", URL: "http://example.com/login"})
		done <- d
	}()

	deadlineCtx := time.After(time.Second)
	for g.Pending() == nil {
		select {
		case <-deadlineCtx:
			t.Fatal("timed out waiting for pending request")
		default:
		}
	}

	if !g.Submit(Decision{Action: ActionForward}) {
		t.Fatal("Submit() = false, want true")
	}

	select {
	case d := <-done:
		if d.Action != ActionForward {
			t.Fatalf("decision = %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatal("Intercept did not return after Submit")
	}
}

func TestGate_Enabled_DeadlineExpires(t *testing.T) {
	t.Parallel()
	g := New(20 * time.Millisecond)
	g.SetEnabled(true)

	decision, timedOut := g.Intercept(RequestView{Method: "GET", URL: "http://example.com/"})
	if decision.Action != ActionDrop || !timedOut {
		t.Fatalf("decision = %+v, timedOut = %v, want Drop/true", decision, timedOut)
	}
}

func TestGate_DisablingWhileHeld_Drops(t *testing.T) {
	t.Parallel()
	g := New(5 * time.Second)
	g.SetEnabled(true)

	done := make(chan Decision, 1)
	go func() {
		d, _ := g.Intercept(RequestView{Method: "GET", URL: "http://example.com/"})
		done <- d
	}()

	for g.Pending() == nil {
		time.Sleep(time.Millisecond)
	}
	g.SetEnabled(false)

	select {
	case d := <-done:
		if d.Action != ActionDrop {
			t.Fatalf("decision = %+v, want Drop", d)
		}
	case <-time.After(time.Second):
		t.Fatal("Intercept did not return after disabling")
	}
}

func TestGate_Serializes_OneAtATime(t *testing.T) {
	t.Parallel()
	g := New(time.Second)
	g.SetEnabled(true)

	results := make(chan int, 2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			g.Intercept(RequestView{Method: "GET", URL: "http://example.com/"})
			results <- i
		}()
	}

	// Drain both holds by repeatedly submitting forward whenever one is pending.
	seen := 0
	deadline := time.After(2 * time.Second)
	for seen < 2 {
		if g.Pending() != nil {
			g.Submit(Decision{Action: ActionForward})
		}
		select {
		case <-results:
			seen++
		case <-deadline:
			t.Fatal("timed out draining holds")
		default:
		}
	}
}

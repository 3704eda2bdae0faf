package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/sentina/pkg/provider/nlu"
	nlumock "github.com/MrWong99/sentina/pkg/provider/nlu/mock"
)

func TestNLUFallback_PrimarySuccess(t *testing.T) {
	primary := &nlumock.Provider{Result: nlu.RouteResult{Intent: "CALL", Confidence: 0.9}}
	secondary := &nlumock.Provider{}

	fb := NewNLUFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	res, err := fb.Route(context.Background(), "llama a ana", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Intent != "CALL" {
		t.Errorf("intent = %q, want CALL", res.Intent)
	}
	if len(secondary.Seen()) != 0 {
		t.Errorf("secondary routed %v, want nothing", secondary.Seen())
	}
}

func TestNLUFallback_Failover(t *testing.T) {
	primary := &nlumock.Provider{Err: errors.New("primary down")}
	secondary := &nlumock.Provider{Result: nlu.RouteResult{Intent: "QUERY"}}

	fb := NewNLUFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	res, err := fb.Route(context.Background(), "qué hora es", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Intent != "QUERY" {
		t.Errorf("intent = %q, want QUERY", res.Intent)
	}
}

func TestNLUFallback_AllFail(t *testing.T) {
	primary := &nlumock.Provider{Err: errors.New("primary down")}
	secondary := &nlumock.Provider{Err: errors.New("secondary down")}

	fb := NewNLUFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Route(context.Background(), "hola", nil)
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

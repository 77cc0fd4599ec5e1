package automate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entrhq/pricescout/pkg/browser"
	"github.com/entrhq/pricescout/pkg/config"
	"github.com/entrhq/pricescout/pkg/logging"
)

type fakeSessions struct {
	session *browser.Session
	err     error
	calls   int
}

func (f *fakeSessions) Acquire(ctx context.Context) (*browser.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func newTestLister(t *testing.T, sessions SessionProvider) *Lister {
	t.Helper()
	log, _ := logging.NewLogger("lister-test")
	return NewLister(sessions, config.Default(), log, nil)
}

func TestCreateListing_MissingRequiredFields(t *testing.T) {
	sessions := &fakeSessions{}
	lister := newTestLister(t, sessions)

	tests := []struct {
		name string
		req  ListingRequest
	}{
		{"empty request", ListingRequest{}},
		{"missing name", ListingRequest{Description: "d", Price: "10"}},
		{"missing description", ListingRequest{ItemName: "n", Price: "10"}},
		{"missing price", ListingRequest{ItemName: "n", Description: "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := lister.CreateListing(context.Background(), tt.req)
			assert.False(t, result.Success)
			assert.Equal(t, "missing required fields", result.Error)
		})
	}

	assert.Equal(t, 0, sessions.calls, "validation must run before session acquisition")
}

func TestCreateListing_SessionAcquisitionFailure(t *testing.T) {
	lister := newTestLister(t, &fakeSessions{err: fmt.Errorf("browser attach failed after launch")})

	result := lister.CreateListing(context.Background(), ListingRequest{
		ItemName:    "Nintendo Switch",
		Description: "Boxed, good condition",
		Price:       "150",
	})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "attach failed")
}

func TestTrimScheme(t *testing.T) {
	assert.Equal(t, "nospos.com", trimScheme("https://nospos.com"))
	assert.Equal(t, "nospos.com", trimScheme("nospos.com"))
}

package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	id "mutualpool/pkg/domain"
	"mutualpool/pkg/requestcontext"
)

// TestIDs provides deterministic accounts and subjects for ledger tests.
var TestIDs = struct {
	Admin    id.AccountID
	Issuer   id.AccountID
	Verifier id.AccountID
	Owner    id.AccountID
	Attester id.AccountID
	Subject  id.SubjectID
}{
	Admin:    "admin",
	Issuer:   "insurer-a",
	Verifier: "kyc-provider",
	Owner:    "alice",
	Attester: "dr-who",
	Subject:  "vehicle-1",
}

// Jurors returns n distinct panelist accounts: juror-00, juror-01, ...
func Jurors(n int) []id.AccountID {
	out := make([]id.AccountID, n)
	for i := range out {
		out[i] = id.AccountID(fmt.Sprintf("juror-%02d", i))
	}
	return out
}

// Clock is a manually advanced ledger clock. The zero value is not usable;
// use NewClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t, which may lie in the past.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// As returns a context that calls the ledger as caller at the clock's current time.
func (c *Clock) As(caller id.AccountID) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), caller)
	return requestcontext.WithTime(ctx, c.Now())
}

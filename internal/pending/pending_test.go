package pending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestSet(ttl time.Duration) (*Set, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(ttl)
	s.now = clock.Now
	return s, clock
}

func TestConsumeRemovesEntry(t *testing.T) {
	s, _ := newTestSet(time.Second)

	s.Add("/papers/Smith_2020_X.pdf")
	assert.Equal(t, 1, s.Len())

	assert.True(t, s.Consume("/papers/Smith_2020_X.pdf"))
	assert.False(t, s.Consume("/papers/Smith_2020_X.pdf"))
	assert.Equal(t, 0, s.Len())
}

func TestConsumeIsPathScoped(t *testing.T) {
	s, _ := newTestSet(time.Second)

	s.Add("/a/paper.pdf")
	assert.False(t, s.Consume("/b/paper.pdf"))
	assert.True(t, s.Consume("/a/paper.pdf"))
}

func TestEntriesExpire(t *testing.T) {
	s, clock := newTestSet(time.Second)

	s.Add("/a/old.pdf")
	clock.t = clock.t.Add(2 * time.Second)
	assert.False(t, s.Consume("/a/old.pdf"))

	s.Add("/a/one.pdf")
	clock.t = clock.t.Add(2 * time.Second)
	s.Add("/a/two.pdf")
	assert.Equal(t, 1, s.Len())
}

func TestBalancedInsertAndRemove(t *testing.T) {
	s, _ := newTestSet(time.Minute)

	for _, p := range []string{"/x/1.pdf", "/x/2.pdf", "/x/3.pdf"} {
		s.Add(p)
	}
	for _, p := range []string{"/x/1.pdf", "/x/2.pdf", "/x/3.pdf"} {
		assert.True(t, s.Consume(p))
	}
	assert.Equal(t, 0, s.Len())
}

func TestDefaultTTL(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultTTL, s.ttl)
}

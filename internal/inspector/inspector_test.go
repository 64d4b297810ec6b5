// ABOUTME: Tests for session registries, idle sweeping and the prompt text
// ABOUTME: Uses a fake clock so expiry is deterministic

package inspector

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestInspector(t *testing.T, ttl time.Duration, max int) (*Inspector, *fakeClock) {
	t.Helper()
	in := New(ttl, max)
	t.Cleanup(in.Close)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	in.now = clock.now
	return in, clock
}

func TestRegisterAndList(t *testing.T) {
	in, _ := newTestInspector(t, 0, 0)

	require.NoError(t, in.Register("s1", Element{ID: "b", Component: "PhotoCard"}))
	require.NoError(t, in.Register("s1", Element{ID: "a", Component: "Gallery"}))
	require.NoError(t, in.Register("s1", Element{ID: "b", Component: "PhotoCard", Props: map[string]string{"photoId": "ph-2"}}))
	require.NoError(t, in.Register("s2", Element{ID: "z", Component: "Cart"}))

	got := in.List("s1")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "ph-2", got[1].Props["photoId"], "re-registering replaces the element")

	assert.Len(t, in.List("s2"), 1, "sessions do not share elements")
}

func TestRegisterValidation(t *testing.T) {
	in, _ := newTestInspector(t, 0, 0)

	tooMany := map[string]string{}
	for i := 0; i <= maxProps; i++ {
		tooMany[fmt.Sprintf("k%d", i)] = "v"
	}

	tests := []struct {
		name string
		el   Element
	}{
		{"missing id", Element{Component: "Gallery"}},
		{"missing component", Element{ID: "x"}},
		{"long id", Element{ID: strings.Repeat("x", maxIDLength+1), Component: "Gallery"}},
		{"negative line", Element{ID: "x", Component: "Gallery", Line: -1}},
		{"too many props", Element{ID: "x", Component: "Gallery", Props: tooMany}},
		{"long prop", Element{ID: "x", Component: "Gallery", Props: map[string]string{"k": strings.Repeat("v", maxPropLength+1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, in.Register("s", tt.el))
		})
	}
	assert.Empty(t, in.List("s"))
}

func TestRegistryFull(t *testing.T) {
	in, _ := newTestInspector(t, 0, 0)
	for i := 0; i < maxElements; i++ {
		require.NoError(t, in.Register("s", Element{ID: fmt.Sprintf("el-%04d", i), Component: "PhotoCard"}))
	}

	assert.ErrorIs(t, in.Register("s", Element{ID: "one-more", Component: "PhotoCard"}), ErrRegistryFull)
	assert.NoError(t, in.Register("s", Element{ID: "el-0000", Component: "Gallery"}), "updates still fit")
}

func TestGetAndClear(t *testing.T) {
	in, _ := newTestInspector(t, 0, 0)
	require.NoError(t, in.Register("s", Element{ID: "nav", Component: "Navigation"}))

	el, err := in.Get("s", "nav")
	require.NoError(t, err)
	assert.Equal(t, "Navigation", el.Component)

	_, err = in.Get("other", "nav")
	assert.ErrorIs(t, err, ErrElementNotFound)

	in.Clear("s")
	_, err = in.Get("s", "nav")
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestSweepDropsIdleSessions(t *testing.T) {
	in, clock := newTestInspector(t, 30*time.Minute, 0)

	require.NoError(t, in.Register("old", Element{ID: "a", Component: "Gallery"}))
	clock.advance(20 * time.Minute)
	require.NoError(t, in.Register("recent", Element{ID: "a", Component: "Gallery"}))

	clock.advance(11 * time.Minute)
	assert.Equal(t, 1, in.Sweep())
	assert.Equal(t, 1, in.Sessions())

	_, err := in.Get("recent", "a")
	assert.NoError(t, err)
	assert.Equal(t, 1, in.Sessions(), "reading keeps a session alive")

	clock.advance(31 * time.Minute)
	assert.Equal(t, 1, in.Sweep())
	assert.Equal(t, 0, in.Sessions())
}

func TestTouchKeepsSessionAlive(t *testing.T) {
	in, clock := newTestInspector(t, 30*time.Minute, 0)

	require.NoError(t, in.Register("s", Element{ID: "a", Component: "Gallery"}))
	for i := 0; i < 4; i++ {
		clock.advance(20 * time.Minute)
		in.List("s")
		assert.Zero(t, in.Sweep())
	}
	assert.Len(t, in.List("s"), 1)
}

func TestMaxSessionsEvictsLeastRecentlyUsed(t *testing.T) {
	in, clock := newTestInspector(t, 0, 2)

	require.NoError(t, in.Register("a", Element{ID: "x", Component: "Gallery"}))
	clock.advance(time.Second)
	require.NoError(t, in.Register("b", Element{ID: "x", Component: "Gallery"}))
	clock.advance(time.Second)
	in.List("a")
	clock.advance(time.Second)
	require.NoError(t, in.Register("c", Element{ID: "x", Component: "Gallery"}))

	assert.Equal(t, 2, in.Sessions())
	_, err := in.Get("a", "x")
	assert.NoError(t, err)
	_, err = in.Get("c", "x")
	assert.NoError(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	in := New(0, 0)
	in.Close()
	in.Close()
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name  string
		el    Element
		want  []string
		avoid []string
	}{
		{
			name: "full",
			el: Element{
				ID: "PhotoCard-ph-1", Component: "PhotoCard", Source: "site/templates/gallery.html", Line: 7,
				Props: map[string]string{"photoId": "ph-1", "alt": "Dunes"},
			},
			want: []string{
				"Component: PhotoCard\n",
				"Source: site/templates/gallery.html:7\n",
				"Element: PhotoCard-ph-1\n",
				"Props:\n  alt: Dunes\n  photoId: ph-1\n",
				"Please open the source above",
			},
		},
		{
			name:  "source without line",
			el:    Element{ID: "nav", Component: "Navigation", Source: "site/templates/base.html"},
			want:  []string{"Source: site/templates/base.html\n"},
			avoid: []string{"Props:", "base.html:"},
		},
		{
			name:  "no source",
			el:    Element{ID: "x", Component: "Widget"},
			want:  []string{"Please find the template"},
			avoid: []string{"Source:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Prompt(tt.el)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, a := range tt.avoid {
				assert.NotContains(t, got, a)
			}
		})
	}
}

package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	rows        []Row
	invalidated []string
	swept       int
	err         error
}

func (f *fakeSource) Rows(context.Context) ([]Row, error) {
	return f.rows, f.err
}

func (f *fakeSource) Invalidate(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	f.invalidated = append(f.invalidated, key)
	return nil
}

func (f *fakeSource) Sweep(context.Context) (int, error) {
	f.swept++
	return 3, f.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, src *fakeSource) KeysModel {
	t.Helper()
	m := NewKeysModel(context.Background(), src, 0)
	assert.Equal(t, defaultInterval, m.interval)
	updated, _ := m.Update(m.load()())
	return updated.(KeysModel)
}

func TestKeysModel_ShowsRows(t *testing.T) {
	src := &fakeSource{rows: []Row{
		{Key: "users:abc", State: "fresh", Age: "2 minutes ago"},
		{Key: "users:def", State: "stale", Age: "2 hours ago"},
	}}
	m := loaded(t, src)

	view := m.View()
	assert.Contains(t, view, "2 entries")
	assert.Contains(t, view, "users:abc")
	assert.Contains(t, view, "stale")
	assert.Contains(t, view, "q quit")
}

func TestKeysModel_Empty(t *testing.T) {
	m := loaded(t, &fakeSource{})
	assert.Contains(t, m.View(), "No cached entries")
}

func TestKeysModel_Invalidate(t *testing.T) {
	src := &fakeSource{rows: []Row{{Key: "k1", State: "fresh"}, {Key: "k2", State: "fresh"}}}
	m := loaded(t, src)

	updated, cmd := m.Update(runes("d"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, []string{"k1"}, src.invalidated)

	updated, reload := updated.(KeysModel).Update(msg)
	require.NotNil(t, reload)
	assert.Contains(t, updated.(KeysModel).View(), "invalidated k1")
}

func TestKeysModel_Sweep(t *testing.T) {
	src := &fakeSource{rows: []Row{{Key: "k1"}}}
	m := loaded(t, src)

	_, cmd := m.Update(runes("s"))
	require.NotNil(t, cmd)
	updated, _ := m.Update(cmd())
	assert.Equal(t, 1, src.swept)
	assert.Contains(t, updated.(KeysModel).View(), "swept 3 stale entries")
}

func TestKeysModel_Errors(t *testing.T) {
	src := &fakeSource{rows: []Row{{Key: "k1"}}}
	m := loaded(t, src)

	src.err = errors.New("store offline")
	updated, _ := m.Update(m.load()())
	view := updated.(KeysModel).View()
	assert.Contains(t, view, "error: store offline")
	assert.Contains(t, view, "k1", "previous rows stay visible")
}

func TestKeysModel_Quit(t *testing.T) {
	m := loaded(t, &fakeSource{})
	for _, k := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}, {Type: tea.KeyEsc}} {
		_, cmd := m.Update(k)
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestKeysModel_WindowSize(t *testing.T) {
	m := loaded(t, &fakeSource{})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	km := updated.(KeysModel)
	assert.Equal(t, 140, km.width)
	assert.Equal(t, 35, km.tableHeight())
	// table.Height reports the rows viewport; the header takes one line.
	assert.Equal(t, 34, km.table.Height())
}

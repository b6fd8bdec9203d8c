package sharedvalue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestSetThenGetAbsoluteAndRelative(t *testing.T) {
	s := NewLocalStore()
	require.NoError(t, s.Set("MAIN.App1", "int_value", 100))

	abs, err := s.Get("MAIN.App0", "MAIN.App1.int_value")
	require.NoError(t, err)
	require.Equal(t, int64(100), abs)

	rel, err := s.Get("MAIN.App1.App1_1", "..int_value")
	require.NoError(t, err)
	require.Equal(t, abs, rel)

	own, err := s.Get("MAIN.App1", ".int_value")
	require.NoError(t, err)
	require.Equal(t, abs, own)
}

func TestPlainValuesAreStoredInWireForm(t *testing.T) {
	s := NewLocalStore()
	cases := []struct {
		suffix string
		in     any
		want   any
	}{
		{"i", 7, int64(7)},
		{"u", uint8(3), uint64(3)},
		{"f", float32(1.5), 1.5},
		{"list", []string{"a", "b"}, []any{"a", "b"}},
		{"ids", []int64{1, 2}, []any{int64(1), int64(2)}},
		{"map", map[string]any{"n": 1, "tags": []string{"x"}}, map[string]any{"n": int64(1), "tags": []any{"x"}}},
	}
	for _, tc := range cases {
		require.NoError(t, s.Set("MAIN.App0", tc.suffix, tc.in))
		got, err := s.Get("MAIN.App0", "."+tc.suffix)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "suffix %s", tc.suffix)
	}
}

func TestWireStoreRejectsUnencodableValues(t *testing.T) {
	s := NewLocalStore(WithWireValues())
	require.ErrorIs(t, s.Set("MAIN.App0", "when", time.Second), ErrUnsupportedValue)
	require.ErrorIs(t, s.Register("MAIN.App0.counts", "MAIN.App0", map[string]int{"a": 1}), ErrUnsupportedValue)
	require.Empty(t, s.Names())

	require.NoError(t, s.Set("MAIN.App0", "cell", NewInt(1)))
}

func TestThreadStoreKeepsArbitraryValues(t *testing.T) {
	type point struct{ X, Y int }
	s := NewLocalStore()
	require.NoError(t, s.Set("MAIN.App0", "origin", point{1, 2}))

	v, err := s.Get("MAIN.App0", ".origin")
	require.NoError(t, err)
	require.Equal(t, point{1, 2}, v)
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := NewLocalStore()
	_, err := s.Get("MAIN", "MAIN.nothing")
	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrReadOnly)
}

func TestGetPastRootIsInvalidName(t *testing.T) {
	s := NewLocalStore()
	_, err := s.Get("MAIN", "...x")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestSetEmptySuffixIsInvalidName(t *testing.T) {
	s := NewLocalStore()
	require.ErrorIs(t, s.Set("MAIN", "..", 1), ErrInvalidName)
}

func TestGetPrefixReturnsFolder(t *testing.T) {
	s := NewLocalStore()
	require.NoError(t, s.Set("MAIN.App1", "int_value", 1))
	require.NoError(t, s.Set("MAIN.App1.App1_1", "str_value", "abc"))
	require.NoError(t, s.Set("MAIN.App10", "other", true))

	v, err := s.Get("MAIN", "MAIN.App1")
	require.NoError(t, err)
	require.IsType(t, Folder{}, v)
	folder := v.(Folder)
	require.Equal(t, []string{"App1_1.str_value", "int_value"}, folder.Keys())
	require.Equal(t, "abc", folder["App1_1.str_value"])
	require.Equal(t, int64(1), folder["int_value"])
}

func TestCellsAreReadOnlyForNonOwners(t *testing.T) {
	s := NewLocalStore()
	cell := NewBool(false)
	require.NoError(t, s.Set("MAIN.App0", "bool_value", cell))

	own, err := s.Get("MAIN.App0", ".bool_value")
	require.NoError(t, err)
	require.Same(t, cell, own)

	other, err := s.Get("MAIN.App1", "MAIN.App0.bool_value")
	require.NoError(t, err)
	require.IsType(t, ReadOnlyValue{}, other)
	ro := other.(ReadOnlyValue)
	require.ErrorIs(t, ro.Store(true), ErrReadOnly)
	got, err := LoadBool(ro)
	require.NoError(t, err)
	require.False(t, got)
}

func TestRegisterWithoutOwnerIsReadOnlyForAll(t *testing.T) {
	s := NewLocalStore()
	flag := NewBool(false)
	require.NoError(t, s.Register(ShutdownName, "", flag))

	v, err := s.Get("MAIN", ShutdownName)
	require.NoError(t, err)
	require.True(t, IsReadOnly(v), "shutdown flag is %T", v)
	require.NoError(t, flag.Store(true))
	got, err := LoadBool(v.(ValueCell))
	require.NoError(t, err)
	require.True(t, got)
}

func TestOverwriteByOtherOwnerIsReadOnly(t *testing.T) {
	s := NewLocalStore()
	require.NoError(t, s.Set("MAIN.App0", "x", 1))
	require.NoError(t, s.Set("MAIN.App0", "x", 2))
	require.ErrorIs(t, s.Set("MAIN", "App0.x", 3), ErrReadOnly)

	v, err := s.Get("MAIN", "MAIN.App0.x")
	require.NoError(t, err)
	require.Equal(t, int64(2), v)
}

func TestStoringReadOnlyWrapperFails(t *testing.T) {
	s := NewLocalStore()
	ro, err := MakeReadOnly(NewInt(1))
	require.NoError(t, err)
	require.ErrorIs(t, s.Set("MAIN", "ro", ro), ErrReadOnly)
}

func TestDoRunsUnderOneLock(t *testing.T) {
	s := NewLocalStore()
	require.NoError(t, s.Set("MAIN", "counter", 0))

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			return s.Do(func(tx Store) error {
				v, err := tx.Get("MAIN", ".counter")
				if err != nil {
					return err
				}
				return tx.Set("MAIN", "counter", v.(int64)+1)
			})
		})
	}
	require.NoError(t, g.Wait())

	v, err := s.Get("MAIN", "MAIN.counter")
	require.NoError(t, err)
	require.Equal(t, int64(50), v)
}

type countingLocker struct {
	sync.Mutex
	locks int
}

func (c *countingLocker) Lock() {
	c.Mutex.Lock()
	c.locks++
}

func TestWithLockerIsUsed(t *testing.T) {
	l := &countingLocker{}
	s := NewLocalStore(WithLocker(l))
	require.NoError(t, s.Set("MAIN", "a", 1))
	_, err := s.Get("MAIN", "MAIN.a")
	require.NoError(t, err)
	require.Equal(t, 2, l.locks)
	require.Equal(t, []string{"MAIN.a"}, s.Names())
}

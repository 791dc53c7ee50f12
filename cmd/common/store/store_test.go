package store

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoomCode_Lifecycle(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.RoomCode(); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v, want absent", ok, err)
	}

	if err := s.SetRoomCode("ABC12"); err != nil {
		t.Fatalf("SetRoomCode: %v", err)
	}
	code, ok, err := s.RoomCode()
	if err != nil || !ok || code != "ABC12" {
		t.Fatalf("RoomCode = %q, ok=%v, err=%v", code, ok, err)
	}

	// Overwrite
	if err := s.SetRoomCode("XYZ99"); err != nil {
		t.Fatalf("SetRoomCode overwrite: %v", err)
	}
	code, _, _ = s.RoomCode()
	if code != "XYZ99" {
		t.Errorf("RoomCode after overwrite = %q, want XYZ99", code)
	}

	if err := s.ClearRoomCode(); err != nil {
		t.Fatalf("ClearRoomCode: %v", err)
	}
	if _, ok, _ := s.RoomCode(); ok {
		t.Error("RoomCode still present after clear")
	}
}

func TestRequireRoomCode_NotJoined(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.RequireRoomCode(); !errors.Is(err, ErrNotJoined) {
		t.Errorf("RequireRoomCode = %v, want ErrNotJoined", err)
	}

	if err := s.SetRoomCode("ROOM1"); err != nil {
		t.Fatalf("SetRoomCode: %v", err)
	}
	code, err := s.RequireRoomCode()
	if err != nil || code != "ROOM1" {
		t.Errorf("RequireRoomCode = %q, %v", code, err)
	}
}

func TestVolume_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	if v := s.Volume(0.8); v != 0.8 {
		t.Errorf("Volume fallback = %v, want 0.8", v)
	}

	if err := s.SetVolume(0.35); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if v := s.Volume(0.8); v != 0.35 {
		t.Errorf("Volume = %v, want 0.35", v)
	}
}

func TestVolume_RejectsGarbage(t *testing.T) {
	s := openTestStore(t)

	if err := s.set(keyVolume, "not a number"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v := s.Volume(0.5); v != 0.5 {
		t.Errorf("Volume with garbage stored = %v, want fallback 0.5", v)
	}

	if err := s.set(keyVolume, "3.5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v := s.Volume(0.5); v != 0.5 {
		t.Errorf("Volume out of range = %v, want fallback 0.5", v)
	}
}

func TestClientID_StableAcrossCalls(t *testing.T) {
	s := openTestStore(t)

	first, err := s.ClientID()
	if err != nil {
		t.Fatalf("ClientID: %v", err)
	}
	if first == "" {
		t.Fatal("ClientID returned empty id")
	}

	second, err := s.ClientID()
	if err != nil {
		t.Fatalf("ClientID second call: %v", err)
	}
	if second != first {
		t.Errorf("ClientID changed between calls: %q then %q", first, second)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetRoomCode("KEEP1"); err != nil {
		t.Fatalf("SetRoomCode: %v", err)
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	code, ok, err := s2.RoomCode()
	if err != nil || !ok || code != "KEEP1" {
		t.Errorf("after reopen: code=%q ok=%v err=%v", code, ok, err)
	}
}

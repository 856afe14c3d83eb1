package rdb

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	if _, err := s.Get(KindModel, 1); !errors.Is(err, ErrNotFound) {
		t.Error("missing record: ", err)
	}
	if err := SaveModel(s, 1, newTestModel()); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(KindImage, 42, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := LoadModel(s, 1)
			if err != nil {
				t.Error(err)
				return
			}
			if m.Name != "Café" || len(m.Records) != 9 {
				t.Error("model: ", m.Name, len(m.Records))
			}
		}()
	}
	wg.Wait()

	v, err := Resolve(s, KindImage, 42)
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := v.([]byte); !ok || len(b) != 3 {
		t.Error("image: ", v)
	}
}

func TestMemStore(t *testing.T) {
	s := NewMemStore()
	testStore(t, s)
	if ids := s.IDs(KindImage); len(ids) != 1 || ids[0] != 42 {
		t.Error("ids: ", ids)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	testStore(t, s)

	if err := s.Put(KindImage, 42, []byte{9}); err != nil {
		t.Fatal(err)
	}
	b, _ := LoadImage(s, 42)
	if len(b) != 1 || b[0] != 9 {
		t.Error("replace: ", b)
	}
	ids, err := s.IDs(KindModel)
	if err != nil || len(ids) != 1 || ids[0] != 1 {
		t.Error("ids: ", ids, err)
	}
}

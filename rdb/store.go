package rdb

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("record not found")

// Store is random access storage of encoded records.
// Implementations must be safe for concurrent Get.
type Store interface {
	Get(kind Kind, id ID) ([]byte, error)
	Put(kind Kind, id ID, data []byte) error
}

// Resolve reads and decodes a record. KindImage returns the raw bytes.
func Resolve(s Store, kind Kind, id ID) (interface{}, error) {
	data, err := s.Get(kind, id)
	if err != nil {
		return nil, err
	}
	var v interface{}
	switch kind {
	case KindModel:
		v, err = DecodeModel(data)
	case KindActor:
		v, err = DecodeActor(data)
	case KindAnimation:
		v, err = DecodeAnimation(data)
	case KindImage:
		v = data
	default:
		return nil, fmt.Errorf("unknown record kind %v", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%v %d: %w", kind, id, err)
	}
	return v, nil
}

func LoadModel(s Store, id ID) (*Model, error) {
	v, err := Resolve(s, KindModel, id)
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

func LoadActor(s Store, id ID) (*Actor, error) {
	v, err := Resolve(s, KindActor, id)
	if err != nil {
		return nil, err
	}
	return v.(*Actor), nil
}

func LoadAnimation(s Store, id ID) (*ActorAnimation, error) {
	v, err := Resolve(s, KindAnimation, id)
	if err != nil {
		return nil, err
	}
	return v.(*ActorAnimation), nil
}

func LoadImage(s Store, id ID) ([]byte, error) {
	return s.Get(KindImage, id)
}

func SaveModel(s Store, id ID, m *Model) error {
	data, err := EncodeModel(m)
	if err != nil {
		return err
	}
	return s.Put(KindModel, id, data)
}

func SaveActor(s Store, id ID, a *Actor) error {
	data, err := EncodeActor(a)
	if err != nil {
		return err
	}
	return s.Put(KindActor, id, data)
}

func SaveAnimation(s Store, id ID, a *ActorAnimation) error {
	data, err := EncodeAnimation(a)
	if err != nil {
		return err
	}
	return s.Put(KindAnimation, id, data)
}

type key struct {
	kind Kind
	id   ID
}

// MemStore keeps records in memory.
type MemStore struct {
	mu      sync.RWMutex
	records map[key][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{records: map[key][]byte{}}
}

func (s *MemStore) Get(kind Kind, id ID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[key{kind, id}]
	if !ok {
		return nil, fmt.Errorf("%w: %v %d", ErrNotFound, kind, id)
	}
	return data, nil
}

func (s *MemStore) Put(kind Kind, id ID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key{kind, id}] = append([]byte(nil), data...)
	return nil
}

// IDs returns the stored ids of kind in no particular order.
func (s *MemStore) IDs(kind Kind) []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []ID
	for k := range s.records {
		if k.kind == kind {
			ids = append(ids, k.id)
		}
	}
	return ids
}

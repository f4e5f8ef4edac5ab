//go:build !(linux && (amd64 || arm64))

package sysvipc

import (
	"context"

	"github.com/edirooss/smokers/internal/domain/factory"
	"github.com/edirooss/smokers/internal/infrastructure/gateset"
)

// Segment is unavailable on this platform.
type Segment struct{}

func CreateSegment(key, size int) (*Segment, error) { return nil, ErrUnsupported }
func OpenSegment(key int) (*Segment, error) { return nil, ErrUnsupported }

func (s *Segment) Load(context.Context) (*factory.State, error) { return nil, ErrUnsupported }
func (s *Segment) Save(context.Context, *factory.State) error { return ErrUnsupported }
func (s *Segment) Detach() error { return ErrUnsupported }
func (s *Segment) Destroy() error { return ErrUnsupported }

// SemSet is unavailable on this platform.
type SemSet struct{}

func CreateSemSet(key int, layout gateset.Layout) (*SemSet, error) { return nil, ErrUnsupported }
func OpenSemSet(key int, layout gateset.Layout) (*SemSet, error) { return nil, ErrUnsupported }

func (s *SemSet) Acquire(context.Context, gateset.Gate) error { return ErrUnsupported }
func (s *SemSet) Release(context.Context, gateset.Gate) error { return ErrUnsupported }
func (s *SemSet) Count(gateset.Gate) (int, error) { return 0, ErrUnsupported }
func (s *SemSet) Destroy() error { return ErrUnsupported }

// Ftok is unavailable on this platform.
func Ftok(path string, proj byte) (int, error) { return 0, ErrUnsupported }

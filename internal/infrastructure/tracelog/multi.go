package tracelog

import (
	"errors"

	"github.com/edirooss/smokers/internal/domain/factory"
)

// Observer receives one snapshot per committed critical section.
type Observer interface {
	Observe(snap factory.Snapshot) error
}

// Multi fans a snapshot out to several observers; every observer is called
// and the failures are joined.
type Multi []Observer

func (m Multi) Observe(snap factory.Snapshot) error {
	var errs []error
	for _, o := range m {
		if o == nil {
			continue
		}
		if err := o.Observe(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every snapshot.
type Discard struct{}

func (Discard) Observe(factory.Snapshot) error { return nil }

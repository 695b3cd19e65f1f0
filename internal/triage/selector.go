package triage

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/identity"
)

// ErrNoDoctorsAvailable means the doctor pool was empty at assignment
// time. It aborts the whole hand-off; no consultation mutation happens.
var ErrNoDoctorsAvailable = errors.New("no doctors available")

// Selector picks a doctor for a triaged patient.
type Selector struct {
	dir identity.Directory
}

func NewSelector(dir identity.Directory) *Selector {
	return &Selector{dir: dir}
}

// SelectDoctor returns one doctor from the current pool, chosen
// uniformly at random. The specialization hint in criteria is carried
// but intentionally not used to filter or weight candidates; routing by
// specialty is an open extension point.
func (s *Selector) SelectDoctor(ctx context.Context, criteria DoctorSelectionCriteria) (identity.Profile, error) {
	doctors, err := s.dir.ListUsersByRole(ctx, identity.RoleDoctor)
	if err != nil {
		return identity.Profile{}, err
	}
	if len(doctors) == 0 {
		return identity.Profile{}, ErrNoDoctorsAvailable
	}
	return doctors[rand.IntN(len(doctors))], nil
}

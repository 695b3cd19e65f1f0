package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/identity"
)

type staticDirectory struct {
	doctors []identity.Profile
}

func (d *staticDirectory) GetUser(ctx context.Context, userID string) (identity.Profile, error) {
	_ = ctx
	for _, p := range d.doctors {
		if p.ID == userID {
			return p, nil
		}
	}
	return identity.Profile{}, errors.New("not found")
}

func (d *staticDirectory) ListUsersByRole(ctx context.Context, role string) ([]identity.Profile, error) {
	_ = ctx
	if role != identity.RoleDoctor {
		return nil, nil
	}
	return d.doctors, nil
}

func TestSelectDoctor_EmptyPool(t *testing.T) {
	sel := NewSelector(&staticDirectory{})

	_, err := sel.SelectDoctor(context.Background(), DoctorSelectionCriteria{Symptoms: "fever"})
	if !errors.Is(err, ErrNoDoctorsAvailable) {
		t.Fatalf("expected ErrNoDoctorsAvailable, got %v", err)
	}
}

func TestSelectDoctor_ReturnsPoolMember(t *testing.T) {
	pool := []identity.Profile{
		{ID: "d1", Name: "Dr. Sarah Smith", Role: identity.RoleDoctor},
		{ID: "d2", Name: "Dr. Michael Johnson", Role: identity.RoleDoctor},
		{ID: "d3", Name: "Dr. Ana Costa", Role: identity.RoleDoctor},
	}
	sel := NewSelector(&staticDirectory{doctors: pool})

	ids := map[string]bool{"d1": true, "d2": true, "d3": true}
	for i := 0; i < 50; i++ {
		doc, err := sel.SelectDoctor(context.Background(), DoctorSelectionCriteria{Symptoms: "rash"})
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if !ids[doc.ID] {
			t.Fatalf("selected doctor %q not in pool", doc.ID)
		}
	}
}

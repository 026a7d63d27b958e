package relationships

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

// -- Mocks --

type pairKey struct{ doctor, patient uuid.UUID }

type mockRepo struct {
	mu       sync.Mutex
	pairs    map[pairKey]bool
	profiles *mockProfiles
}

func newMockRepo(p *mockProfiles) *mockRepo {
	return &mockRepo{pairs: make(map[pairKey]bool), profiles: p}
}

func (m *mockRepo) Add(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{doctorID, patientID}
	if m.pairs[k] {
		return false, nil
	}
	m.pairs[k] = true
	return true, nil
}

func (m *mockRepo) Remove(_ context.Context, doctorID, patientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pairs, pairKey{doctorID, patientID})
	return nil
}

func (m *mockRepo) PatientsOf(_ context.Context, doctorID uuid.UUID) ([]*identity.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*identity.Patient{}
	for k := range m.pairs {
		if k.doctor == doctorID {
			out = append(out, m.profiles.patients[k.patient])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepo) DoctorsOf(_ context.Context, patientID uuid.UUID) ([]*identity.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*identity.Doctor{}
	for k := range m.pairs {
		if k.patient == patientID {
			out = append(out, m.profiles.doctors[k.doctor])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type mockProfiles struct {
	doctors  map[uuid.UUID]*identity.Doctor
	patients map[uuid.UUID]*identity.Patient
}

func (m *mockProfiles) DoctorByID(_ context.Context, id uuid.UUID) (*identity.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	return d, nil
}

func (m *mockProfiles) PatientByID(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, apperr.NotFound("patient not found")
	}
	return p, nil
}

// -- Fixtures --

type fixture struct {
	svc      *Service
	profiles *mockProfiles
}

func newFixture() *fixture {
	p := &mockProfiles{
		doctors:  make(map[uuid.UUID]*identity.Doctor),
		patients: make(map[uuid.UUID]*identity.Patient),
	}
	return &fixture{svc: NewService(newMockRepo(p), p), profiles: p}
}

func (f *fixture) doctor(name string) (*identity.Doctor, Caller) {
	d := &identity.Doctor{ID: uuid.New(), UserID: uuid.New(), Name: name}
	f.profiles.doctors[d.ID] = d
	return d, Caller{UserID: d.UserID, Role: auth.RoleDoctor}
}

func (f *fixture) patient(name string) (*identity.Patient, Caller) {
	p := &identity.Patient{ID: uuid.New(), UserID: uuid.New(), Name: name}
	f.profiles.patients[p.ID] = p
	return p, Caller{UserID: p.UserID, Role: auth.RolePatient}
}

var admin = Caller{UserID: uuid.New(), Role: auth.RoleAdmin}

func TestConnect_BothSidesSeeEachOther(t *testing.T) {
	f := newFixture()
	bob, bobCaller := f.doctor("Bob")
	alice, aliceCaller := f.patient("Alice")

	if err := f.svc.Connect(context.Background(), bobCaller, Link{DoctorID: bob.ID, PatientID: alice.ID}); err != nil {
		t.Fatalf("connect: %v", err)
	}

	patients, err := f.svc.PatientsOf(context.Background(), bobCaller, bob.ID)
	if err != nil {
		t.Fatalf("patients of: %v", err)
	}
	if len(patients) != 1 || patients[0].ID != alice.ID {
		t.Errorf("expected Alice in Bob's patients, got %+v", patients)
	}
	doctors, err := f.svc.DoctorsOf(context.Background(), aliceCaller, alice.ID)
	if err != nil {
		t.Fatalf("doctors of: %v", err)
	}
	if len(doctors) != 1 || doctors[0].ID != bob.ID {
		t.Errorf("expected Bob in Alice's doctors, got %+v", doctors)
	}
}

func TestConnect_Duplicate(t *testing.T) {
	f := newFixture()
	d, _ := f.doctor("Bob")
	p, _ := f.patient("Alice")
	link := Link{DoctorID: d.ID, PatientID: p.ID}

	if err := f.svc.Connect(context.Background(), admin, link); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := f.svc.Connect(context.Background(), admin, link); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected Conflict, got %v", err)
	}
}

func TestConnect_MissingProfiles(t *testing.T) {
	f := newFixture()
	d, _ := f.doctor("Bob")
	p, _ := f.patient("Alice")

	for _, link := range []Link{
		{DoctorID: uuid.New(), PatientID: p.ID},
		{DoctorID: d.ID, PatientID: uuid.New()},
	} {
		if err := f.svc.Connect(context.Background(), admin, link); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected NotFound for %+v, got %v", link, err)
		}
		if err := f.svc.Disconnect(context.Background(), admin, link); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("expected NotFound on disconnect for %+v, got %v", link, err)
		}
	}
}

func TestConnect_OnlyParties(t *testing.T) {
	f := newFixture()
	d, dCaller := f.doctor("Bob")
	_, otherDoctor := f.doctor("Eve")
	p, pCaller := f.patient("Alice")
	_, otherPatient := f.patient("Mallory")
	link := Link{DoctorID: d.ID, PatientID: p.ID}

	for _, c := range []Caller{otherDoctor, otherPatient} {
		if err := f.svc.Connect(context.Background(), c, link); !errors.Is(err, apperr.ErrForbidden) {
			t.Errorf("expected Forbidden for %+v, got %v", c, err)
		}
	}
	if err := f.svc.Connect(context.Background(), pCaller, link); err != nil {
		t.Errorf("expected patient to connect, got %v", err)
	}
	if err := f.svc.Disconnect(context.Background(), dCaller, link); err != nil {
		t.Errorf("expected doctor to disconnect, got %v", err)
	}
}

func TestDisconnect_RestoresProjections(t *testing.T) {
	f := newFixture()
	d, _ := f.doctor("Bob")
	p1, _ := f.patient("Alice")
	p2, _ := f.patient("Zed")
	ctx := context.Background()

	if err := f.svc.Connect(ctx, admin, Link{DoctorID: d.ID, PatientID: p1.ID}); err != nil {
		t.Fatal(err)
	}
	beforePatients, _ := f.svc.PatientsOf(ctx, admin, d.ID)
	beforeDoctors, _ := f.svc.DoctorsOf(ctx, admin, p2.ID)

	link := Link{DoctorID: d.ID, PatientID: p2.ID}
	if err := f.svc.Connect(ctx, admin, link); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Disconnect(ctx, admin, link); err != nil {
		t.Fatal(err)
	}

	afterPatients, _ := f.svc.PatientsOf(ctx, admin, d.ID)
	afterDoctors, _ := f.svc.DoctorsOf(ctx, admin, p2.ID)
	if !reflect.DeepEqual(beforePatients, afterPatients) {
		t.Errorf("patients projection changed: %v -> %v", beforePatients, afterPatients)
	}
	if !reflect.DeepEqual(beforeDoctors, afterDoctors) {
		t.Errorf("doctors projection changed: %v -> %v", beforeDoctors, afterDoctors)
	}

	if err := f.svc.Disconnect(ctx, admin, link); err != nil {
		t.Errorf("expected disconnect of absent pair to succeed, got %v", err)
	}
}

func TestListing_Visibility(t *testing.T) {
	f := newFixture()
	d, _ := f.doctor("Bob")
	p, _ := f.patient("Alice")
	_, stranger := f.patient("Mallory")

	if _, err := f.svc.PatientsOf(context.Background(), stranger, d.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected Forbidden, got %v", err)
	}
	if _, err := f.svc.DoctorsOf(context.Background(), stranger, p.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected Forbidden, got %v", err)
	}
	if _, err := f.svc.PatientsOf(context.Background(), admin, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

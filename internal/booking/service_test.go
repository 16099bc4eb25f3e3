package booking

import (
	"context"
	"io"
	"testing"

	"inkflow/internal/events"
	"inkflow/internal/model"
	"inkflow/shared/access"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetAppointment(ctx context.Context, studioID, id string) (*model.Appointment, error) {
	args := m.Called(ctx, studioID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Appointment), args.Error(1)
}
func (m *mockStore) FilterAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]model.Appointment), args.Error(1)
}
func (m *mockStore) FilterAvailabilities(ctx context.Context, f model.AvailabilityFilter) ([]model.Availability, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]model.Availability), args.Error(1)
}
func (m *mockStore) FilterWorkStations(ctx context.Context, f model.WorkStationFilter) ([]model.WorkStation, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]model.WorkStation), args.Error(1)
}
func (m *mockStore) ListLocations(ctx context.Context, studioID string) ([]model.Location, error) {
	args := m.Called(ctx, studioID)
	return args.Get(0).([]model.Location), args.Error(1)
}
func (m *mockStore) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	args := m.Called(ctx, a)
	if args.Error(0) == nil {
		a.ID = "apt-new"
	}
	return args.Error(0)
}
func (m *mockStore) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	return m.Called(ctx, a).Error(0)
}
func (m *mockStore) DeleteAppointment(ctx context.Context, studioID, id string) error {
	return m.Called(ctx, studioID, id).Error(0)
}

type noMembers struct{}

func (noMembers) GetMember(context.Context, string, string) (*access.Member, error) {
	return nil, access.ErrMemberNotFound
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(e events.Event) error {
	b.published = append(b.published, e)
	return nil
}

const studio = "studio-1"

func newTestService(store *mockStore, bus *recordingBus) *Service {
	logger := zerolog.New(io.Discard)
	return NewService(store, access.NewService(noMembers{}, logger), bus, logger)
}

func expectSnapshot(store *mockStore, appointments []model.Appointment) {
	store.On("FilterAppointments", mock.Anything, model.AppointmentFilter{StudioID: studio, Date: day}).
		Return(appointments, nil)
	store.On("FilterAvailabilities", mock.Anything, mock.AnythingOfType("model.AvailabilityFilter")).
		Return([]model.Availability{}, nil)
	store.On("FilterWorkStations", mock.Anything, model.WorkStationFilter{StudioID: studio, LocationID: downtown}).
		Return(stations(), nil)
	store.On("ListLocations", mock.Anything, studio).
		Return([]model.Location{{ID: downtown, Name: "Downtown"}}, nil)
}

func newBooking(station string) model.Appointment {
	return model.Appointment{
		ArtistID:      artistA,
		LocationID:    downtown,
		WorkStationID: station,
		Date:          day,
		StartTime:     "10:00",
		DurationHours: 2,
	}
}

func TestServiceSaveCreates(t *testing.T) {
	store := new(mockStore)
	bus := &recordingBus{}
	svc := newTestService(store, bus)
	ctx := context.Background()
	desk := access.Actor{UserID: "u1", StudioID: studio, Role: access.RoleFrontDesk}

	expectSnapshot(store, []model.Appointment{})
	store.On("CreateAppointment", ctx, mock.AnythingOfType("*model.Appointment")).Return(nil).Once()

	out, err := svc.Save(ctx, desk, newBooking(stationD1))
	require.NoError(t, err)
	require.NotNil(t, out.Appointment)
	assert.Equal(t, "apt-new", out.Appointment.ID)
	assert.Equal(t, studio, out.Appointment.StudioID)
	assert.Equal(t, model.StatusScheduled, out.Appointment.Status)

	require.Len(t, bus.published, 1)
	assert.Equal(t, events.AppointmentCreated, bus.published[0].Type)
	p, err := bus.published[0].DecodeAppointment()
	require.NoError(t, err)
	assert.Equal(t, "apt-new", p.AppointmentID)
	store.AssertExpectations(t)
}

func TestServiceSaveRejectsConflicts(t *testing.T) {
	store := new(mockStore)
	bus := &recordingBus{}
	svc := newTestService(store, bus)
	ctx := context.Background()
	desk := access.Actor{UserID: "u1", StudioID: studio, Role: access.RoleAdmin}

	expectSnapshot(store, []model.Appointment{
		apt("a1", artistA, downtown, stationD2, "11:00", 1, model.StatusScheduled),
	})

	out, err := svc.Save(ctx, desk, newBooking(stationD1))
	require.NoError(t, err)
	assert.Nil(t, out.Appointment)
	assert.True(t, out.Result.Has(ArtistDoubleBooked))
	assert.Empty(t, bus.published)
	store.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
}

func TestServiceSaveStationPolicy(t *testing.T) {
	desk := access.Actor{UserID: "u1", StudioID: studio, Role: access.RoleFrontDesk}

	t.Run("station required when one is free", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, &recordingBus{})
		expectSnapshot(store, []model.Appointment{})

		_, err := svc.Save(context.Background(), desk, newBooking(""))
		assert.ErrorIs(t, err, ErrStationRequired)
	})

	t.Run("taken station rejected", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store, &recordingBus{})
		expectSnapshot(store, []model.Appointment{
			apt("a1", artistB, downtown, stationD1, "10:00", 2, model.StatusScheduled),
		})

		out, err := svc.Save(context.Background(), desk, newBooking(stationD1))
		assert.ErrorIs(t, err, ErrStationUnavailable)
		assert.Equal(t, []string{stationD2}, stationIDs(out.Result.Candidates))
	})

	t.Run("location required", func(t *testing.T) {
		svc := newTestService(new(mockStore), &recordingBus{})
		b := newBooking(stationD1)
		b.LocationID = ""
		_, err := svc.Save(context.Background(), desk, b)
		assert.ErrorIs(t, err, ErrInvalidProposal)
	})
}

func TestServiceSaveUpdateKeepsSchedulerFields(t *testing.T) {
	store := new(mockStore)
	bus := &recordingBus{}
	svc := newTestService(store, bus)
	ctx := context.Background()
	artist := access.Actor{UserID: "u2", StudioID: studio, Role: access.RoleArtist, ArtistID: artistA}

	existing := apt("mine", artistA, downtown, stationD1, "10:00", 2, model.StatusScheduled)
	existing.EmailSendStatus = model.EmailSent
	store.On("GetAppointment", ctx, studio, "mine").Return(&existing, nil)
	expectSnapshot(store, []model.Appointment{existing})
	store.On("UpdateAppointment", ctx, mock.MatchedBy(func(a *model.Appointment) bool {
		return a.ID == "mine" && a.EmailSendStatus == model.EmailSent && a.StartTime == "10:30"
	})).Return(nil).Once()

	edit := newBooking(stationD1)
	edit.ID = "mine"
	edit.StartTime = "10:30"

	out, err := svc.Save(ctx, artist, edit)
	require.NoError(t, err)
	require.NotNil(t, out.Appointment)
	require.Len(t, bus.published, 1)
	assert.Equal(t, events.AppointmentUpdated, bus.published[0].Type)
	store.AssertExpectations(t)
}

func TestServiceSaveDeniesForeignArtist(t *testing.T) {
	store := new(mockStore)
	svc := newTestService(store, &recordingBus{})
	artist := access.Actor{UserID: "u2", StudioID: studio, Role: access.RoleArtist, ArtistID: artistB}

	_, err := svc.Save(context.Background(), artist, newBooking(stationD1))
	assert.True(t, access.IsAccessDenied(err))
}

func TestServiceSaveCancellationSkipsValidation(t *testing.T) {
	store := new(mockStore)
	bus := &recordingBus{}
	svc := newTestService(store, bus)
	ctx := context.Background()
	desk := access.Actor{UserID: "u1", StudioID: studio, Role: access.RoleFrontDesk}

	existing := apt("apt-1", artistA, downtown, stationD1, "10:00", 2, model.StatusScheduled)
	store.On("GetAppointment", ctx, studio, "apt-1").Return(&existing, nil)
	store.On("UpdateAppointment", ctx, mock.AnythingOfType("*model.Appointment")).Return(nil)

	cancel := existing
	cancel.Status = model.StatusCancelled
	out, err := svc.Save(ctx, desk, cancel)
	require.NoError(t, err)
	require.NotNil(t, out.Appointment)
	assert.Empty(t, bus.published, "a cancellation must not reach the customer as an update")
	store.AssertNotCalled(t, "FilterAppointments", mock.Anything, mock.Anything)
}

func TestServiceSaveSilentStatuses(t *testing.T) {
	desk := access.Actor{UserID: "u1", StudioID: studio, Role: access.RoleFrontDesk}

	for _, status := range []model.AppointmentStatus{model.StatusNoShow, model.StatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			store := new(mockStore)
			bus := &recordingBus{}
			svc := newTestService(store, bus)
			ctx := context.Background()

			existing := apt("apt-1", artistA, downtown, stationD1, "10:00", 2, model.StatusScheduled)
			store.On("GetAppointment", ctx, studio, "apt-1").Return(&existing, nil)
			expectSnapshot(store, []model.Appointment{existing})
			store.On("UpdateAppointment", ctx, mock.AnythingOfType("*model.Appointment")).Return(nil).Once()

			edit := existing
			edit.Status = status
			out, err := svc.Save(ctx, desk, edit)
			require.NoError(t, err)
			require.NotNil(t, out.Appointment)
			assert.Equal(t, status, out.Appointment.Status)
			assert.Empty(t, bus.published)
		})
	}
}

func TestServiceDeleteByArtistCancels(t *testing.T) {
	store := new(mockStore)
	bus := &recordingBus{}
	svc := newTestService(store, bus)
	ctx := context.Background()
	artist := access.Actor{UserID: "u2", StudioID: studio, Role: access.RoleArtist, ArtistID: artistA}

	own := apt("own", artistA, downtown, stationD1, "10:00", 2, model.StatusScheduled)
	store.On("GetAppointment", ctx, studio, "own").Return(&own, nil)
	store.On("UpdateAppointment", ctx, mock.MatchedBy(func(a *model.Appointment) bool {
		return a.ID == "own" && a.Status == model.StatusCancelled
	})).Return(nil).Once()

	require.NoError(t, svc.Delete(ctx, artist, "own"))
	store.AssertNotCalled(t, "DeleteAppointment", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, bus.published)

	foreign := apt("foreign", artistB, downtown, stationD2, "12:00", 1, model.StatusScheduled)
	store.On("GetAppointment", ctx, studio, "foreign").Return(&foreign, nil)
	assert.True(t, access.IsAccessDenied(svc.Delete(ctx, artist, "foreign")))

	store.AssertExpectations(t)
}

func TestServiceDeleteAndUnlock(t *testing.T) {
	store := new(mockStore)
	bus := &recordingBus{}
	svc := newTestService(store, bus)
	ctx := context.Background()
	owner := access.Actor{UserID: "u0", StudioID: studio, Role: access.RoleOwner}

	done := apt("done", artistA, downtown, stationD1, "10:00", 2, model.StatusCompleted)
	store.On("GetAppointment", ctx, studio, "done").Return(&done, nil)
	store.On("UpdateAppointment", ctx, mock.AnythingOfType("*model.Appointment")).Return(nil)

	err := svc.Delete(ctx, owner, "done")
	assert.True(t, access.IsAccessDenied(err), "completed appointments cannot be deleted")

	reopened, err := svc.Unlock(ctx, owner, "done")
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, reopened.Status)

	open := apt("open", artistA, downtown, stationD1, "10:00", 2, model.StatusScheduled)
	store.On("GetAppointment", ctx, studio, "open").Return(&open, nil)
	store.On("DeleteAppointment", ctx, studio, "open").Return(nil).Once()
	require.NoError(t, svc.Delete(ctx, owner, "open"))
	require.Len(t, bus.published, 1)
	assert.Equal(t, events.AppointmentDeleted, bus.published[0].Type)

	store.On("GetAppointment", ctx, studio, "missing").Return(nil, model.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, owner, "missing"), model.ErrNotFound)
}

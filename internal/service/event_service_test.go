package service

import (
	"context"
	"testing"
	"time"

	"ynetwork/internal/models"
	"ynetwork/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workshop(creatorID uint, start time.Time) CreateEventInput {
	return CreateEventInput{
		CreatorID:   creatorID,
		Title:       "Intro to Go",
		Description: "Hands-on workshop covering goroutines",
		EventType:   "Workshop",
		Location:    "Lab 2",
		StartDate:   start,
		EndDate:     start.Add(2 * time.Hour),
	}
}

func TestEventService_CreateEvent(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	creator := testutil.CreateUser(t, f.db, "")
	fan := testutil.CreateUser(t, f.db, "")
	require.NoError(t, f.follows.Follow(ctx, fan.ID, creator.ID))

	start := time.Now().UTC().Add(24 * time.Hour)
	ev, err := f.events.CreateEvent(ctx, workshop(creator.ID, start))
	require.NoError(t, err)
	assert.Equal(t, 1, ev.ParticipantCount)
	require.Len(t, ev.Participants, 1)
	assert.Equal(t, creator.ID, ev.Participants[0].ID)

	calls := f.notifier.ofType(models.NotificationNewEvent)
	require.Len(t, calls, 1)
	assert.Equal(t, fan.ID, calls[0].RecipientID)
	assert.Equal(t, "Intro to Go", calls[0].In.Content)

	bad := workshop(creator.ID, start)
	bad.EndDate = start.Add(-time.Hour)
	_, err = f.events.CreateEvent(ctx, bad)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "end_date")

	bad = workshop(creator.ID, start)
	bad.EventType = "Party"
	_, err = f.events.CreateEvent(ctx, bad)
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "event_type")
}

func TestEventService_JoinAndLeave(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	creator := testutil.CreateUser(t, f.db, "")
	a := testutil.CreateUser(t, f.db, "")
	b := testutil.CreateUser(t, f.db, "")

	in := workshop(creator.ID, time.Now().UTC().Add(time.Hour))
	in.ParticipantLimit = 2
	ev, err := f.events.CreateEvent(ctx, in)
	require.NoError(t, err)

	joined, err := f.events.JoinEvent(ctx, a.ID, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.ParticipantCount)

	_, err = f.events.JoinEvent(ctx, a.ID, ev.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	_, err = f.events.JoinEvent(ctx, b.ID, ev.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation), "event is full")

	err = f.events.LeaveEvent(ctx, creator.ID, ev.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation))

	require.NoError(t, f.events.LeaveEvent(ctx, a.ID, ev.ID))
	_, err = f.events.JoinEvent(ctx, b.ID, ev.ID)
	require.NoError(t, err)

	f.events.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	_, err = f.events.JoinEvent(ctx, a.ID, ev.ID)
	assert.True(t, models.IsCode(err, models.CodeValidation), "event has ended")
}

func TestEventService_ListUpdateDelete(t *testing.T) {
	f := newSocialFixture(t)
	ctx := context.Background()
	creator := testutil.CreateUser(t, f.db, "")
	other := testutil.CreateUser(t, f.db, "")
	now := time.Now().UTC()

	later, err := f.events.CreateEvent(ctx, workshop(creator.ID, now.Add(72*time.Hour)))
	require.NoError(t, err)
	soon := workshop(creator.ID, now.Add(time.Hour))
	soon.Title = "Hackathon kickoff"
	soon.EventType = "Competition"
	first, err := f.events.CreateEvent(ctx, soon)
	require.NoError(t, err)
	past := workshop(creator.ID, now.Add(-72*time.Hour))
	past.Title = "Old seminar"
	past.EventType = "Seminar"
	_, err = f.events.CreateEvent(ctx, past)
	require.NoError(t, err)

	page, err := f.events.ListEvents(ctx, ListEventsInput{})
	require.NoError(t, err)
	require.Len(t, page.Events, 2, "ended events are hidden")
	assert.Equal(t, first.ID, page.Events[0].ID)
	assert.Equal(t, later.ID, page.Events[1].ID)

	page, err = f.events.ListEvents(ctx, ListEventsInput{SortBy: "createdAt"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalCount)

	page, err = f.events.ListEvents(ctx, ListEventsInput{EventType: "Competition", Query: "hack"})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)

	_, err = f.events.ListEvents(ctx, ListEventsInput{SortBy: "title"})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	loc := "Main Hall"
	_, err = f.events.UpdateEvent(ctx, UpdateEventInput{UserID: other.ID, EventID: later.ID, Location: &loc})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	updated, err := f.events.UpdateEvent(ctx, UpdateEventInput{UserID: creator.ID, EventID: later.ID, Location: &loc})
	require.NoError(t, err)
	assert.Equal(t, "Main Hall", updated.Location)

	end := later.StartDate.Add(-time.Minute)
	_, err = f.events.UpdateEvent(ctx, UpdateEventInput{UserID: creator.ID, EventID: later.ID, EndDate: &end})
	assert.True(t, models.IsCode(err, models.CodeValidation))

	err = f.events.DeleteEvent(ctx, other.ID, later.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	require.NoError(t, f.events.DeleteEvent(ctx, creator.ID, later.ID))
	_, err = f.events.GetEvent(ctx, later.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

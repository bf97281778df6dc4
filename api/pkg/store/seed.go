package store

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/types"
)

var seedRooms = []types.Room{
	{Name: "Room A", Capacity: 30, RoomType: "Classroom", Location: "Block 1"},
	{Name: "Room B", Capacity: 50, RoomType: "Auditorium", Location: "Block 1"},
	{Name: "Room C", Capacity: 20, RoomType: "Lab", Location: "Block 2"},
	{Name: "Room D", Capacity: 40, RoomType: "Classroom", Location: "Block 2"},
	{Name: "Room E", Capacity: 25, RoomType: "Seminar", Location: "Block 3"},
	{Name: "Room F", Capacity: 60, RoomType: "Auditorium", Location: "Block 3"},
	{Name: "Room G", Capacity: 35, RoomType: "Classroom", Location: "Block 4"},
	{Name: "Room H", Capacity: 45, RoomType: "Lab", Location: "Block 4"},
	{Name: "Room I", Capacity: 30, RoomType: "Seminar", Location: "Block 5"},
	{Name: "Room J", Capacity: 55, RoomType: "Auditorium", Location: "Block 5"},
}

// SeedSyntheticData writes the deterministic demo dataset: ten rooms and
// SeedDays days of booking history per room and slot. It is a no-op when
// any room already exists, so repeated startups never duplicate data.
func (s *SQLiteStore) SeedSyntheticData(ctx context.Context, cfg config.Synthetic) error {
	rooms, err := s.ListRooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) > 0 {
		log.Info().Msg("synthetic data already present; skipping seed")
		return nil
	}

	rng := rand.New(rand.NewSource(cfg.RandomSeed))

	created := make([]types.Room, 0, len(seedRooms))
	for _, room := range seedRooms {
		room := room
		if _, err := s.CreateRoom(ctx, &room); err != nil {
			return err
		}
		created = append(created, room)
	}

	startDate := time.Now().UTC().AddDate(0, 0, -cfg.SeedDays)
	records := make([]types.BookingRecord, 0, cfg.SeedDays*len(created)*len(cfg.TimeSlots))
	for day := 0; day < cfg.SeedDays; day++ {
		currentDay := startDate.AddDate(0, 0, day)
		occupiedProbability := cfg.WeekdayOccupiedProbability
		if weekday := currentDay.Weekday(); weekday == time.Saturday || weekday == time.Sunday {
			occupiedProbability = cfg.WeekendOccupiedProbability
		}
		for _, room := range created {
			for _, slot := range cfg.TimeSlots {
				occupied := 0
				if rng.Float64() < occupiedProbability {
					occupied = 1
				}
				records = append(records, types.BookingRecord{
					RoomID:   room.ID,
					Date:     currentDay.Format("2006-01-02"),
					TimeSlot: slot,
					Occupied: occupied,
				})
			}
		}
	}

	if err := s.CreateBookingRecords(ctx, records); err != nil {
		return err
	}
	log.Info().Int("records", len(records)).Msg("synthetic seed completed")
	return nil
}

type demoRequest struct {
	Capacity      int
	TimeSlot      string
	StakeholderID string
	Priority      float64
}

var demoRequests = []demoRequest{
	{Capacity: 25, TimeSlot: "09-11", StakeholderID: "ENGINEERING", Priority: 1.5},
	{Capacity: 40, TimeSlot: "09-11", StakeholderID: "FINANCE", Priority: 1.0},
	{Capacity: 15, TimeSlot: "09-11", StakeholderID: "HR", Priority: 1.2},
	{Capacity: 30, TimeSlot: "11-13", StakeholderID: "ENGINEERING", Priority: 1.5},
	{Capacity: 50, TimeSlot: "11-13", StakeholderID: "MARKETING", Priority: 1.0},
	{Capacity: 20, TimeSlot: "13-15", StakeholderID: "OPERATIONS", Priority: 1.3},
	{Capacity: 35, TimeSlot: "13-15", StakeholderID: "FINANCE", Priority: 1.0},
	{Capacity: 28, TimeSlot: "15-17", StakeholderID: "HR", Priority: 1.2},
}

// SeedDemoRequests writes a small pending request pool for tomorrow so a
// fresh install has something to allocate. No-op when any request exists.
func (s *SQLiteStore) SeedDemoRequests(ctx context.Context) error {
	var count int64
	if err := s.gdb.WithContext(ctx).Model(&types.AllocationRequest{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Info().Msg("requests already present; skipping demo seed")
		return nil
	}

	targetDate := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	for _, demo := range demoRequests {
		request := types.AllocationRequest{
			RequestedCapacity: demo.Capacity,
			RequestedDate:     targetDate,
			RequestedTimeSlot: demo.TimeSlot,
			StakeholderID:     demo.StakeholderID,
			PriorityWeight:    demo.Priority,
			Status:            types.RequestStatusPending,
		}
		if _, err := s.CreateRequest(ctx, &request); err != nil {
			return err
		}
	}
	log.Info().Int("requests", len(demoRequests)).Str("date", targetDate).Msg("demo request seed completed")
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/greenalloc/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func pending(id string) model.Batch {
	return model.Batch{ID: id, Documents: []string{id + ".pdf"}, Status: model.BatchPending}
}

func TestBatchStore_BasicOperations(t *testing.T) {
	Convey("Given an empty batch store", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
		store := NewBatchStore(ctx, WithClock(clock.Now))
		defer store.Close()

		So(store.Count(ctx), ShouldEqual, 0)

		Convey("When a batch is stored", func() {
			So(store.Put(ctx, pending("b1")), ShouldBeNil)

			Convey("Then it can be read back with timestamps set", func() {
				got, err := store.Get(ctx, "b1")
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, model.BatchPending)
				So(got.CreatedAt, ShouldEqual, clock.Now())
				So(got.UpdatedAt, ShouldEqual, clock.Now())
				So(store.Count(ctx), ShouldEqual, 1)
			})

			Convey("Then storing the same id again fails", func() {
				So(errors.Is(store.Put(ctx, pending("b1")), ErrExists), ShouldBeTrue)
			})

			Convey("Then mutating a returned copy does not leak into the store", func() {
				got, _ := store.Get(ctx, "b1")
				got.Documents[0] = "tampered"
				again, _ := store.Get(ctx, "b1")
				So(again.Documents[0], ShouldEqual, "b1.pdf")
			})

			Convey("Then Update applies changes and bumps UpdatedAt", func() {
				clock.Advance(time.Second)
				updated, err := store.Update(ctx, "b1", func(b *model.Batch) error {
					b.Status = model.BatchReady
					b.Projects = []model.Project{{Name: "Solar Farm"}}
					return nil
				})
				So(err, ShouldBeNil)
				So(updated.Status, ShouldEqual, model.BatchReady)
				So(updated.UpdatedAt, ShouldEqual, clock.Now())

				got, _ := store.Get(ctx, "b1")
				So(got.Projects, ShouldHaveLength, 1)
			})

			Convey("Then a failing Update leaves the batch unchanged", func() {
				boom := errors.New("boom")
				_, err := store.Update(ctx, "b1", func(b *model.Batch) error {
					b.Status = model.BatchFailed
					return boom
				})
				So(errors.Is(err, boom), ShouldBeTrue)

				got, _ := store.Get(ctx, "b1")
				So(got.Status, ShouldEqual, model.BatchPending)
			})

			Convey("Then Delete removes it", func() {
				So(store.Delete(ctx, "b1"), ShouldBeNil)
				_, err := store.Get(ctx, "b1")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(errors.Is(store.Delete(ctx, "b1"), ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When an unknown batch is requested", func() {
			_, err := store.Get(ctx, "missing")
			_, updErr := store.Update(ctx, "missing", func(*model.Batch) error { return nil })

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				So(errors.Is(updErr, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a batch has no id", func() {
			err := store.Put(ctx, model.Batch{})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrInvalidBatch), ShouldBeTrue)
			})
		})
	})
}

func TestBatchStore_Bounds(t *testing.T) {
	Convey("Given a store bounded to three batches", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
		store := NewBatchStore(ctx, WithMaxBatches(3), WithClock(clock.Now))
		defer store.Close()

		Convey("When a fourth batch is stored", func() {
			for i := 1; i <= 4; i++ {
				So(store.Put(ctx, pending(fmt.Sprintf("b%d", i))), ShouldBeNil)
			}

			Convey("Then the oldest is evicted", func() {
				So(store.Count(ctx), ShouldEqual, 3)
				_, err := store.Get(ctx, "b1")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				_, err = store.Get(ctx, "b4")
				So(err, ShouldBeNil)
			})
		})
	})

	Convey("Given a store with a one hour retention", t, func() {
		ctx := context.Background()
		clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
		store := NewBatchStore(ctx, WithRetention(time.Hour), WithPruneInterval(time.Hour), WithClock(clock.Now))
		defer store.Close()

		So(store.Put(ctx, pending("old")), ShouldBeNil)
		clock.Advance(45 * time.Minute)
		So(store.Put(ctx, pending("fresh")), ShouldBeNil)

		Convey("When the old batch ages past retention", func() {
			clock.Advance(30 * time.Minute)
			removed := store.Prune(ctx)

			Convey("Then only the old batch is pruned", func() {
				So(removed, ShouldEqual, 1)
				_, err := store.Get(ctx, "old")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				_, err = store.Get(ctx, "fresh")
				So(err, ShouldBeNil)
			})
		})

		Convey("When the old batch is touched before expiry", func() {
			clock.Advance(10 * time.Minute)
			_, err := store.Update(ctx, "old", func(b *model.Batch) error {
				b.Status = model.BatchReady
				return nil
			})
			So(err, ShouldBeNil)
			clock.Advance(30 * time.Minute)

			Convey("Then retention counts from the last update", func() {
				So(store.Prune(ctx), ShouldEqual, 0)
				So(store.Count(ctx), ShouldEqual, 2)
			})
		})
	})
}

func TestBatchStore_Concurrency(t *testing.T) {
	ctx := context.Background()
	store := NewBatchStore(ctx, WithMaxBatches(0))
	defer store.Close()

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				if err := store.Put(ctx, pending(id)); err != nil {
					t.Errorf("put %s: %v", id, err)
					return
				}
				if _, err := store.Update(ctx, id, func(b *model.Batch) error {
					b.Status = model.BatchProcessing
					return nil
				}); err != nil {
					t.Errorf("update %s: %v", id, err)
				}
			}
		}(w)
	}
	wg.Wait()

	if got := store.Count(ctx); got != writers*perWriter {
		t.Errorf("expected %d batches, got %d", writers*perWriter, got)
	}
}

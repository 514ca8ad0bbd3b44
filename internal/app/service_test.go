package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	service "github.com/okian/greenalloc/internal/app"
	"github.com/okian/greenalloc/internal/domain/allocation"
	"github.com/okian/greenalloc/internal/domain/extraction"
	"github.com/okian/greenalloc/internal/domain/model"
	"github.com/okian/greenalloc/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const manifest = `
projects:
  - name: Solar Farm
    esg_score: 85
    estimated_return: 12.5
    carbon_reduction: 5000
    risk_level: 3
    required_funding: 400000
  - name: Wind Park
    esg_score: 78
    estimated_return: 9.8
    carbon_reduction: 4000
    risk_level: 4
    required_funding: 300000
`

func manifestDoc() model.Document {
	return model.Document{Name: "projects.yaml", ContentType: "application/yaml", Data: []byte(manifest)}
}

// blockingExtractor holds every call until release is closed.
type blockingExtractor struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingExtractor) unblock() {
	b.once.Do(func() { close(b.release) })
}

func (b *blockingExtractor) Extract(ctx context.Context, _ []model.Document) (extraction.Result, error) {
	select {
	case <-b.release:
		return extraction.Result{Projects: []model.Project{{Name: "Held", ESGScore: 50, RequiredFunding: 10}}}, nil
	case <-ctx.Done():
		return extraction.Result{}, ctx.Err()
	}
}

func waitFor(ctx context.Context, svc *service.Service, id string) model.Batch {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		b, err := svc.Batch(ctx, id)
		if err == nil && b.Status.Terminal() {
			return b
		}
		time.Sleep(5 * time.Millisecond)
	}
	b, _ := svc.Batch(ctx, id)
	return b
}

func TestService_Lifecycle(t *testing.T) {
	convey.Convey("Given a service that has not been started", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		svc := service.New()

		convey.Convey("Then batch operations report ErrNotStarted", func() {
			_, _, err := svc.SubmitUpload(ctx, "", []model.Document{manifestDoc()})
			convey.So(errors.Is(err, service.ErrNotStarted), convey.ShouldBeTrue)

			_, err = svc.Batch(ctx, "anything")
			convey.So(errors.Is(err, service.ErrNotStarted), convey.ShouldBeTrue)
		})

		convey.Convey("Then stateless allocation still works", func() {
			set, err := svc.Allocate(ctx, []model.Project{{Name: "Only", ESGScore: 60, RequiredFunding: 500}}, 50)
			convey.So(err, convey.ShouldBeNil)
			convey.So(set.Allocations, convey.ShouldHaveLength, 1)
			convey.So(set.Allocations[0].Value, convey.ShouldEqual, 500)
		})

		convey.Convey("Then stats show it stopped", func() {
			convey.So(svc.GetStats()["started"], convey.ShouldEqual, false)
		})

		convey.Convey("When started twice and stopped twice", func() {
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)

			stopCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			convey.So(svc.Stop(stopCtx), convey.ShouldBeNil)
			convey.So(svc.Stop(stopCtx), convey.ShouldBeNil)
		})
	})
}

func TestService_UploadAndAllocate(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(10))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() {
			stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			_ = svc.Stop(stopCtx)
		}()

		convey.Convey("When a manifest is uploaded", func() {
			b, dup, err := svc.SubmitUpload(ctx, "upload-1", []model.Document{manifestDoc()})
			convey.So(err, convey.ShouldBeNil)
			convey.So(dup, convey.ShouldBeFalse)
			convey.So(b.ID, convey.ShouldNotBeEmpty)
			convey.So(b.Documents, convey.ShouldResemble, []string{"projects.yaml"})

			ready := waitFor(ctx, svc, b.ID)

			convey.Convey("Then the batch becomes ready with both projects", func() {
				convey.So(ready.Status, convey.ShouldEqual, model.BatchReady)
				convey.So(ready.Projects, convey.ShouldHaveLength, 2)
				convey.So(ready.Projects[0].Name, convey.ShouldEqual, "Solar Farm")
			})

			convey.Convey("Then allocations match the engine", func() {
				set, err := svc.Allocations(ctx, b.ID, 50)
				convey.So(err, convey.ShouldBeNil)
				convey.So(set.BatchID, convey.ShouldEqual, b.ID)
				convey.So(set.RiskTolerance, convey.ShouldEqual, 50)
				convey.So(set.Allocations, convey.ShouldHaveLength, 2)
				convey.So(set.Allocations[0].Score, convey.ShouldEqual, 33.5)
				convey.So(set.Allocations[1].Score, convey.ShouldEqual, 29.6)
				convey.So(math.Abs(set.Allocations[0].Value-212496.04), convey.ShouldBeLessThan, 0.01)
				convey.So(math.Abs(set.Allocations[1].Value-140627.97), convey.ShouldBeLessThan, 0.01)
			})

			convey.Convey("Then the ranking orders by score", func() {
				ranked, err := svc.Ranking(ctx, b.ID, 50)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ranked[0].Name, convey.ShouldEqual, "Solar Farm")
				convey.So(ranked[0].Rank, convey.ShouldEqual, 1)
			})

			convey.Convey("Then an out of range tolerance is rejected by the engine", func() {
				_, err := svc.Allocations(ctx, b.ID, 150)
				convey.So(errors.Is(err, allocation.ErrInvalidInput), convey.ShouldBeTrue)
			})

			convey.Convey("Then re-uploading with the same key returns the same batch", func() {
				again, dup, err := svc.SubmitUpload(ctx, "upload-1", []model.Document{manifestDoc()})
				convey.So(err, convey.ShouldBeNil)
				convey.So(dup, convey.ShouldBeTrue)
				convey.So(again.ID, convey.ShouldEqual, b.ID)
			})

			convey.Convey("Then uploading without a key creates a new batch", func() {
				other, dup, err := svc.SubmitUpload(ctx, "", []model.Document{manifestDoc()})
				convey.So(err, convey.ShouldBeNil)
				convey.So(dup, convey.ShouldBeFalse)
				convey.So(other.ID, convey.ShouldNotEqual, b.ID)
			})

			convey.Convey("Then stats count the batch", func() {
				stats := svc.GetStats()
				convey.So(stats["started"], convey.ShouldEqual, true)
				convey.So(stats["batches"], convey.ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		convey.Convey("When an upload cannot be extracted", func() {
			b, _, err := svc.SubmitUpload(ctx, "", []model.Document{{Name: "notes.docx", ContentType: "application/msword", Data: []byte("x")}})
			convey.So(err, convey.ShouldBeNil)
			failed := waitFor(ctx, svc, b.ID)

			convey.Convey("Then the batch fails and allocations report it", func() {
				convey.So(failed.Status, convey.ShouldEqual, model.BatchFailed)
				convey.So(failed.Failures, convey.ShouldHaveLength, 1)
				_, err := svc.Allocations(ctx, b.ID, 50)
				convey.So(errors.Is(err, service.ErrBatchFailed), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an upload has no documents", func() {
			_, _, err := svc.SubmitUpload(ctx, "", nil)

			convey.Convey("Then it is rejected as invalid", func() {
				convey.So(errors.Is(err, service.ErrInvalidUpload), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an unknown batch is requested", func() {
			_, err := svc.Batch(ctx, "missing")
			_, allocErr := svc.Allocations(ctx, "missing", 50)

			convey.Convey("Then ErrBatchNotFound is returned", func() {
				convey.So(errors.Is(err, service.ErrBatchNotFound), convey.ShouldBeTrue)
				convey.So(errors.Is(allocErr, service.ErrBatchNotFound), convey.ShouldBeTrue)
			})
		})
	})
}

func TestService_Backpressure(t *testing.T) {
	convey.Convey("Given a service whose only worker is blocked", t, func() {
		_ = logger.Init()
		ctx := context.Background()
		blocker := &blockingExtractor{release: make(chan struct{})}
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithExtractor(blocker),
		)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() {
			blocker.unblock()
			stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			_ = svc.Stop(stopCtx)
		}()

		first, _, err := svc.SubmitUpload(ctx, "", []model.Document{manifestDoc()})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When uploads keep arriving", func() {
			var rejected error
			var rejectedKey string
			for i := 0; i < 10 && rejected == nil; i++ {
				key := fmt.Sprintf("key-%d", i)
				if _, _, err := svc.SubmitUpload(ctx, key, []model.Document{manifestDoc()}); err != nil {
					rejected, rejectedKey = err, key
				}
				time.Sleep(5 * time.Millisecond)
			}

			convey.Convey("Then the queue eventually pushes back", func() {
				convey.So(errors.Is(rejected, service.ErrBackpressure), convey.ShouldBeTrue)
			})

			convey.Convey("Then the rejected key is released for a retry", func() {
				blocker.unblock()
				waitFor(ctx, svc, first.ID)

				var retry error
				for i := 0; i < 50; i++ {
					if _, _, retry = svc.SubmitUpload(ctx, rejectedKey, []model.Document{manifestDoc()}); retry == nil {
						break
					}
					time.Sleep(10 * time.Millisecond)
				}
				convey.So(retry, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is full and one key is uploaded concurrently", func() {
			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) {
				if b, _ := svc.Batch(ctx, first.ID); b.Status == model.BatchProcessing {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			_, _, err := svc.SubmitUpload(ctx, "", []model.Document{manifestDoc()})
			convey.So(err, convey.ShouldBeNil)

			const uploads = 16
			type outcome struct {
				batch model.Batch
				dup   bool
				err   error
			}
			results := make([]outcome, uploads)
			var wg sync.WaitGroup
			for i := range results {
				wg.Add(1)
				go func() {
					defer wg.Done()
					b, dup, err := svc.SubmitUpload(ctx, "shared-key", []model.Document{manifestDoc()})
					results[i] = outcome{batch: b, dup: dup, err: err}
				}()
			}
			wg.Wait()

			convey.Convey("Then every upload is pushed back and none sees a rolled back batch", func() {
				for _, r := range results {
					convey.So(r.dup, convey.ShouldBeFalse)
					convey.So(errors.Is(r.err, service.ErrBackpressure), convey.ShouldBeTrue)
				}
			})
		})

		convey.Convey("When a batch is still being extracted", func() {
			_, err := svc.Allocations(ctx, first.ID, 50)

			convey.Convey("Then allocations report it is not ready", func() {
				convey.So(errors.Is(err, service.ErrBatchNotReady), convey.ShouldBeTrue)
			})
		})
	})
}

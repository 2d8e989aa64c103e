package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/facegate/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryLedger(t *testing.T) {
	Convey("Given a new ledger", t, func() {
		ctx := context.Background()
		l := dedupe.NewInMemoryLedger()

		Convey("Then it starts empty", func() {
			So(l.Size(), ShouldEqual, 0)
			So(l.Status("ABCDE"), ShouldEqual, dedupe.StatusUnknown)
		})

		Convey("When a code is claimed", func() {
			ok := l.Claim(ctx, "ABCDE")

			Convey("Then the claim succeeds once", func() {
				So(ok, ShouldBeTrue)
				So(l.Status("ABCDE"), ShouldEqual, dedupe.StatusClaimed)
				So(l.Claim(ctx, "ABCDE"), ShouldBeFalse)
				So(l.Size(), ShouldEqual, 1)
			})

			Convey("And released after abandoning the session", func() {
				l.Release(ctx, "ABCDE")

				Convey("Then it can be claimed again", func() {
					So(l.Size(), ShouldEqual, 0)
					So(l.Claim(ctx, "ABCDE"), ShouldBeTrue)
				})
			})

			Convey("And committed after enrollment", func() {
				l.Commit(ctx, "ABCDE")
				l.Release(ctx, "ABCDE")

				Convey("Then it stays used", func() {
					So(l.Status("ABCDE"), ShouldEqual, dedupe.StatusUsed)
					So(l.Claim(ctx, "ABCDE"), ShouldBeFalse)
					So(l.Status("ABCDE").String(), ShouldEqual, "used")
				})
			})
		})

		Convey("When a code is committed without a claim", func() {
			l.Commit(ctx, "ZZZZZ")

			Convey("Then it is remembered as used", func() {
				So(l.Status("ZZZZZ"), ShouldEqual, dedupe.StatusUsed)
				So(l.Size(), ShouldEqual, 1)
			})
		})

		Convey("When releasing an unknown code", func() {
			Convey("Then nothing happens", func() {
				So(func() { l.Release(ctx, "nope") }, ShouldNotPanic)
				So(l.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestLedgerEviction(t *testing.T) {
	Convey("Given a ledger bounded to two codes", t, func() {
		ctx := context.Background()
		l := dedupe.NewInMemoryLedger(dedupe.WithMaxSize(2))

		Convey("When both slots hold used codes", func() {
			l.Claim(ctx, "code-1")
			l.Commit(ctx, "code-1")
			l.Claim(ctx, "code-2")
			l.Commit(ctx, "code-2")
			So(l.Claim(ctx, "code-3"), ShouldBeTrue)

			Convey("Then the oldest used code is forgotten", func() {
				So(l.Size(), ShouldEqual, 2)
				So(l.Status("code-1"), ShouldEqual, dedupe.StatusUnknown)
				So(l.Status("code-2"), ShouldEqual, dedupe.StatusUsed)
				So(l.Status("code-3"), ShouldEqual, dedupe.StatusClaimed)
			})
		})

		Convey("When the oldest entry is an open claim", func() {
			l.Claim(ctx, "open")
			l.Claim(ctx, "done")
			l.Commit(ctx, "done")
			l.Claim(ctx, "next")

			Convey("Then the claim survives eviction", func() {
				So(l.Status("open"), ShouldEqual, dedupe.StatusClaimed)
				So(l.Status("done"), ShouldEqual, dedupe.StatusUnknown)
			})
		})
	})

	Convey("Given an unbounded ledger", t, func() {
		ctx := context.Background()
		l := dedupe.NewInMemoryLedger(dedupe.WithMaxSize(0))

		Convey("Then nothing is evicted", func() {
			for i := 0; i < 500; i++ {
				So(l.Claim(ctx, fmt.Sprintf("code-%d", i)), ShouldBeTrue)
			}
			So(l.Size(), ShouldEqual, 500)
		})
	})
}

func TestLedgerConcurrentClaims(t *testing.T) {
	Convey("Given many goroutines claiming the same code", t, func() {
		ctx := context.Background()
		l := dedupe.NewInMemoryLedger()
		var wins atomic.Int64
		var wg sync.WaitGroup

		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Claim(ctx, "shared") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one claim wins", func() {
			So(wins.Load(), ShouldEqual, 1)
			So(l.Size(), ShouldEqual, 1)
		})
	})
}

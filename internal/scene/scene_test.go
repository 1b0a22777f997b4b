package scene_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ravik-dev/kinetiq/internal/dispatch"
	"github.com/ravik-dev/kinetiq/internal/mirror"
	"github.com/ravik-dev/kinetiq/internal/scene"
	"github.com/ravik-dev/kinetiq/internal/sched"
)

// collector records delivered events for assertions.
type collector struct {
	mu     sync.Mutex
	events []mirror.Event
}

func (c *collector) OnEvent(ev mirror.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) kinds() []mirror.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]mirror.EventKind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

func (c *collector) byKind(k mirror.EventKind) []mirror.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []mirror.Event
	for _, ev := range c.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

var _ = Describe("Scene stepping", func() {
	var (
		port *dispatch.Serial
		s    *scene.Scene
	)

	newScene := func(cfg scene.Config) *scene.Scene {
		cfg.Diagnostics = true
		return scene.New(cfg, port)
	}

	BeforeEach(func() {
		port = dispatch.NewSerial()
		s = newScene(scene.DefaultConfig())
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
		port.Close()
	})

	It("integrates gravity over a blocking step", func() {
		a, err := s.AddActor("ball", scene.Vec3{0, 100, 0}, 0.5)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Step(0.01)).To(Succeed())

		Expect(a.Velocity()[1]).To(BeNumerically("<", 0))
		Expect(a.Position()[1]).To(BeNumerically("<", 100))
		Expect(s.Stats().Steps()).To(Equal(1))
	})

	It("stops a stepping loop at the next boundary when cancelled", func() {
		_, err := s.AddActor("ball", scene.Vec3{0, 10, 0}, 0.5)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Run(context.Background(), 0.01, 5)).To(Succeed())
		Expect(s.Stats().Steps()).To(Equal(5))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(s.Run(ctx, 0.01, 5)).To(MatchError(context.Canceled))
		Expect(s.Stats().Steps()).To(Equal(5), "no step may start after cancellation")
	})

	It("rejects a non-positive timestep", func() {
		Expect(s.Step(0)).To(HaveOccurred())
		Expect(s.Step(-0.01)).To(HaveOccurred())
	})

	It("enforces the step lifecycle", func() {
		_, err := s.AwaitStep(true)
		Expect(err).To(MatchError(sched.ErrStepNotActive))

		Expect(s.BeginStep(0.01)).To(Succeed())
		Expect(s.BeginStep(0.01)).To(MatchError(sched.ErrStepActive))
		_, err = s.AddActor("late", scene.Vec3{}, 1)
		Expect(err).To(MatchError(sched.ErrStepActive))

		done, err := s.AwaitStep(true)
		Expect(err).NotTo(HaveOccurred())
		Expect(done).To(BeTrue())
	})

	Describe("concurrent API access during a step", func() {
		var a *scene.Actor

		BeforeEach(func() {
			var err error
			a, err = s.AddActor("ball", scene.Vec3{0, 50, 0}, 0.5)
			Expect(err).NotTo(HaveOccurred())
		})

		It("serves the caller its own buffered write immediately", func() {
			Expect(s.BeginStep(0.01)).To(Succeed())

			want := scene.Vec3{1, 2, 3}
			Expect(a.SetPosition(want)).To(Succeed())
			Expect(a.Position()).To(Equal(want))

			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets a buffered API write win over the step result", func() {
			Expect(s.BeginStep(0.01)).To(Succeed())

			want := scene.Vec3{7, 7, 7}
			Expect(a.SetPosition(want)).To(Succeed())

			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())

			// The integrator moved the snapshot, but the API write is the
			// one visible after the flush.
			Expect(a.Position()).To(Equal(want))
		})

		It("keeps unwritten attributes on the step result", func() {
			Expect(s.BeginStep(0.01)).To(Succeed())
			Expect(a.SetPosition(scene.Vec3{7, 7, 7})).To(Succeed())
			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())

			// Velocity was never written through the API, so the
			// integrated value survives.
			Expect(a.Velocity()[1]).To(BeNumerically("<", 0))
		})

		It("reflects buffered writes in scene queries mid-step", func() {
			Expect(s.BeginStep(0.01)).To(Succeed())
			Expect(a.SetPosition(scene.Vec3{500, 0, 0})).To(Succeed())

			hits := s.OverlapSphere(scene.Vec3{500, 0, 0}, 1)
			Expect(hits).To(ContainElement(a.ID()))

			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())
		})

		It("serves consistent positions to readers racing the flush", func() {
			initial := a.Position()
			Expect(s.BeginStep(0.01)).To(Succeed())

			stop := make(chan struct{})
			sampled := make(chan []scene.Vec3, 1)
			go func() {
				var out []scene.Vec3
				for {
					select {
					case <-stop:
						sampled <- out
						return
					default:
						out = append(out, a.Position())
					}
				}
			}()

			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())
			close(stop)
			final := a.Position()

			// Every sample must be the frozen snapshot value or the
			// flushed result, never a half-applied vector.
			for _, v := range <-sampled {
				Expect(v).To(Or(Equal(initial), Equal(final)))
			}
		})
	})

	Describe("events", func() {
		var events *collector

		BeforeEach(func() {
			events = &collector{}
			s.RegisterListener(events)
		})

		It("reports contacts between overlapping actors", func() {
			_, err := s.AddActor("a", scene.Vec3{0, 0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AddActor("b", scene.Vec3{1, 0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Step(0.001)).To(Succeed())
			Expect(events.byKind(mirror.EventContact)).NotTo(BeEmpty())
		})

		It("accepts listener registration while a step is in flight", func() {
			_, err := s.AddActor("a", scene.Vec3{0, 0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AddActor("b", scene.Vec3{1, 0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.BeginStep(0.001)).To(Succeed())
			late := &collector{}
			s.RegisterListener(late)
			_, err = s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())

			Expect(late.byKind(mirror.EventContact)).NotTo(BeEmpty(),
				"a listener registered mid-step must see that step's events")
		})

		It("reports trigger overlaps as trigger events", func() {
			_, err := s.AddTrigger("zone", scene.Vec3{0, 0, 0}, 5)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.AddActor("probe", scene.Vec3{1, 0, 0}, 0.5)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Step(0.001)).To(Succeed())
			Expect(events.byKind(mirror.EventTrigger)).NotTo(BeEmpty())
			Expect(events.byKind(mirror.EventContact)).To(BeEmpty())
		})

		It("emits a sleep event when an actor drops below threshold", func() {
			cfg := scene.DefaultConfig()
			cfg.Gravity = scene.Vec3{}
			quiet := newScene(cfg)
			defer quiet.Close()

			a, err := quiet.AddActor("still", scene.Vec3{0, 0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())

			sleeps := &collector{}
			quiet.RegisterListener(sleeps)
			Expect(quiet.Step(0.01)).To(Succeed())

			Expect(a.Sleeping()).To(BeTrue())
			Expect(sleeps.byKind(mirror.EventSleep)).To(HaveLen(1))
		})
	})

	Describe("removal during a step", func() {
		var events *collector
		var a, b *scene.Actor

		BeforeEach(func() {
			cfg := scene.DefaultConfig()
			cfg.Gravity = scene.Vec3{}
			s2 := newScene(cfg)
			DeferCleanup(func() { s2.Close() })
			s = s2

			events = &collector{}
			s.RegisterListener(events)

			var err error
			a, err = s.AddActor("a", scene.Vec3{0, 0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			b, err = s.AddActor("b", scene.Vec3{1, 0, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
		})

		It("detaches the actor at the flush point", func() {
			Expect(s.BeginStep(0.01)).To(Succeed())
			Expect(b.Remove()).To(Succeed())
			Expect(s.ActorCount()).To(Equal(2), "removal must not land before the flush")

			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.ActorCount()).To(Equal(1))
			Expect(s.OverlapSphere(scene.Vec3{1, 0, 0}, 0.1)).NotTo(ContainElement(b.ID()))
		})

		It("suppresses wake and sleep events of the removed actor", func() {
			// Both actors come to rest this step; only the surviving one
			// may report it.
			Expect(s.BeginStep(0.01)).To(Succeed())
			Expect(b.Remove()).To(Succeed())
			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())

			sleeps := events.byKind(mirror.EventSleep)
			Expect(sleeps).To(HaveLen(1))
			Expect(sleeps[0].A).To(Equal(a.ID()))
		})

		It("delivers contacts with the removed marker set", func() {
			Expect(s.BeginStep(0.01)).To(Succeed())
			Expect(b.Remove()).To(Succeed())
			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())

			contacts := events.byKind(mirror.EventContact)
			Expect(contacts).NotTo(BeEmpty())
			Expect(contacts[0].RemovedA || contacts[0].RemovedB).To(BeTrue())
		})

		It("synthesizes lost-touch notifications for broken pairs", func() {
			a.NotifyOnLost(true, true)

			Expect(s.BeginStep(0.01)).To(Succeed())
			Expect(b.Remove()).To(Succeed())
			_, err := s.AwaitStep(true)
			Expect(err).NotTo(HaveOccurred())

			lost := events.byKind(mirror.EventTouchLost)
			Expect(lost).To(HaveLen(1))
			Expect(lost[0].RemovedB).To(BeTrue())
			Expect(lost[0].RemovedA).To(BeFalse())
			Expect(events.byKind(mirror.EventForceLost)).To(HaveLen(1))
		})
	})

	Describe("application tasks", func() {
		It("runs scheduled work within the step", func() {
			var mu sync.Mutex
			var ran []string

			pre, err := s.Schedule(func() {
				mu.Lock()
				ran = append(ran, "pre")
				mu.Unlock()
			}, "app-pre")
			Expect(err).NotTo(HaveOccurred())

			post, err := s.Schedule(func() {
				mu.Lock()
				ran = append(ran, "post")
				mu.Unlock()
			}, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(post.StartAfter(pre.ID())).To(Succeed())

			pre.RemoveReference()
			post.RemoveReference()

			Expect(s.Step(0.01)).To(Succeed())
			mu.Lock()
			defer mu.Unlock()
			Expect(ran).To(Equal([]string{"pre", "post"}))
		})
	})
})

var _ = Describe("Scene on the work-stealing pool", func() {
	It("steps a large scene to completion", func() {
		pool := dispatch.NewPool(4)
		defer pool.Close()

		cfg := scene.DefaultConfig()
		cfg.ChunkSize = 16
		s := scene.New(cfg, pool)
		defer s.Close()

		for i := 0; i < 200; i++ {
			_, err := s.AddActor("a", scene.Vec3{float64(i) * 3, 100, 0}, 0.5)
			Expect(err).NotTo(HaveOccurred())
		}

		for i := 0; i < 10; i++ {
			Expect(s.Step(0.01)).To(Succeed())
		}
		Expect(s.Stats().Steps()).To(Equal(10))
		Expect(s.Stats().Last()).To(BeNumerically(">", 0))
	})
})

//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/infra"
)

var sixAM = time.Date(2025, 3, 14, 6, 0, 0, 0, time.Local)

var _ = Describe("Morning journal gate", func() {
	var h *gateHarness

	Context("first unlock inside the window with no entry", func() {
		BeforeEach(func() {
			h = newGateHarness(sixAM, domain.ModeHard)
			h.start()
			Eventually(h.monitorRunning).Should(BeTrue())
		})

		It("arms a fifteen minute blocking window", func() {
			Expect(h.blocking()).To(BeFalse())

			h.signal(domain.SignalUnlock)

			Eventually(h.blocking).Should(BeTrue())
			Expect(h.watcher.State().RemainingSeconds()).To(BeNumerically("~", 900, 1))

			mode, active := h.watcher.Enforcement().Active()
			Expect(active).To(BeTrue())
			Expect(mode).To(Equal(domain.ModeHard))
		})

		It("redirects blocked apps but leaves others alone", func() {
			h.signal(domain.SignalUnlock)
			Eventually(h.foreground.Watching).Should(BeTrue())

			h.foreground.Emit("firefox", 100)
			h.foreground.Emit("steam", 101)

			Eventually(h.navigator.Count).Should(Equal(1))
			Consistently(h.navigator.Count, 200*time.Millisecond).Should(Equal(1))
		})

		It("publishes the countdown in the heartbeat", func() {
			h.signal(domain.SignalUnlock)
			Eventually(h.blocking).Should(BeTrue())

			Eventually(func() bool {
				entry, err := h.registry.Get()
				return err == nil && entry.Status.Blocking && entry.Status.BlockingEndsAt == sixAM.Add(15*time.Minute).Unix()
			}).Should(BeTrue())
		})

		It("does not re-arm on later unlocks", func() {
			h.signal(domain.SignalUnlock)
			Eventually(h.blocking).Should(BeTrue())
			first := *h.watcher.State().Snapshot().FirstUnlockAt

			h.clock.Advance(5 * time.Minute)
			h.signal(domain.SignalUnlock)

			Consistently(func() time.Time {
				return *h.watcher.State().Snapshot().FirstUnlockAt
			}, 200*time.Millisecond).Should(Equal(first))
		})

		It("stops the monitor when blocking is switched off", func() {
			Expect(h.settings.Set(infra.KeyBlockingEnabled, "false")).To(Succeed())

			Eventually(h.monitorRunning, 3*time.Second).Should(BeFalse())
		})
	})

	Context("journal already written today", func() {
		BeforeEach(func() {
			h = newGateHarness(sixAM, domain.ModeHard)
			h.write(250)
			h.start()
		})

		It("marks the day complete and never starts the monitor", func() {
			Eventually(func() bool {
				return h.watcher.State().Snapshot().JournalCompleted
			}).Should(BeTrue())
			Consistently(h.monitorRunning, 300*time.Millisecond).Should(BeFalse())

			h.signal(domain.SignalUnlock)
			Consistently(h.blocking, 200*time.Millisecond).Should(BeFalse())
		})
	})

	Context("writing the journal while blocking", func() {
		BeforeEach(func() {
			h = newGateHarness(sixAM, domain.ModeHard)
			h.start()
			Eventually(h.monitorRunning).Should(BeTrue())
			h.signal(domain.SignalUnlock)
			Eventually(h.blocking).Should(BeTrue())
			Eventually(h.foreground.Watching).Should(BeTrue())
		})

		It("ends blocking and stops redirecting", func() {
			h.foreground.Emit("steam", 200)
			Eventually(h.navigator.Count).Should(Equal(1))

			h.write(200)

			Eventually(h.blocking, 3*time.Second).Should(BeFalse())
			Eventually(h.foreground.Watching).Should(BeFalse())

			h.clock.Advance(2 * time.Second)
			h.foreground.Emit("steam", 201)
			Consistently(h.navigator.Count, 200*time.Millisecond).Should(Equal(1))
		})

		It("records the completion once", func() {
			h.write(200)
			Eventually(h.blocking, 3*time.Second).Should(BeFalse())

			h.write(260)

			Eventually(func() int {
				completions, err := h.store.Completions(context.Background(), 10)
				Expect(err).NotTo(HaveOccurred())
				return len(completions)
			}).Should(Equal(1))
			completions, err := h.store.Completions(context.Background(), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(completions[0].Day).To(Equal("2025-03-14"))
			Expect(completions[0].Words).To(Equal(uint32(200)))
		})

		It("ignores a partial entry", func() {
			h.write(120)

			Consistently(h.blocking, 300*time.Millisecond).Should(BeTrue())
		})
	})

	Context("outside the morning window", func() {
		It("never starts the monitor", func() {
			h = newGateHarness(sixAM.Add(5*time.Hour), domain.ModeHard)
			h.start()

			Consistently(h.monitorRunning, 300*time.Millisecond).Should(BeFalse())
		})

		It("stops a running monitor even when armed", func() {
			h = newGateHarness(sixAM, domain.ModeHard)
			h.start()
			Eventually(h.monitorRunning).Should(BeTrue())
			h.signal(domain.SignalUnlock)
			Eventually(h.blocking).Should(BeTrue())

			h.clock.Set(sixAM.Add(5 * time.Hour))

			Eventually(h.monitorRunning).Should(BeFalse())
			Expect(h.watcher.State().Snapshot().Armed()).To(BeTrue())
		})
	})

	Context("date change while armed", func() {
		It("resets and arms a fresh window on the new day", func() {
			h = newGateHarness(sixAM, domain.ModeHard)
			h.start()
			Eventually(h.monitorRunning).Should(BeTrue())
			h.signal(domain.SignalUnlock)
			Eventually(h.blocking).Should(BeTrue())

			nextMorning := sixAM.AddDate(0, 0, 1)
			h.clock.Set(nextMorning)
			h.signal(domain.SignalTimeChanged)

			Eventually(func() string {
				return h.watcher.State().Snapshot().ResetDate
			}).Should(Equal("2025-03-15"))
			Eventually(h.blocking).Should(BeTrue())
			Expect(h.watcher.State().Snapshot().FirstUnlockAt.Equal(nextMorning)).To(BeTrue())
		})
	})

	Context("gentle mode", func() {
		It("reminds instead of redirecting", func() {
			h = newGateHarness(sixAM, domain.ModeGentle)
			h.usage.Set("discord")
			h.start()
			Eventually(h.monitorRunning).Should(BeTrue())

			h.signal(domain.SignalUnlock)

			Eventually(func() int { return h.reminder.Count("discord") }).Should(BeNumerically(">=", 1))
			Expect(h.navigator.Count()).To(Equal(0))
			mode, _ := h.watcher.Enforcement().Active()
			Expect(mode).To(Equal(domain.ModeGentle))
		})
	})

	Context("manual reset", func() {
		It("clears today's state", func() {
			h = newGateHarness(sixAM, domain.ModeHard)
			h.start()
			Eventually(h.monitorRunning).Should(BeTrue())
			h.signal(domain.SignalUnlock)
			Eventually(h.blocking).Should(BeTrue())

			h.signal(domain.SignalManualReset)

			Eventually(h.blocking).Should(BeFalse())
			Expect(h.watcher.State().Snapshot().Armed()).To(BeFalse())
		})
	})
})

//go:build integration

package integration

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/clipsentry/clipsentry/internal/clearer"
	"github.com/clipsentry/clipsentry/internal/coordinator"
	"github.com/clipsentry/clipsentry/internal/domain"
	"github.com/clipsentry/clipsentry/internal/infra"
	"github.com/clipsentry/clipsentry/internal/presenter"
	"github.com/clipsentry/clipsentry/internal/transport"
)

const authToken = "integration-token"

// testDaemon assembles the real stack (encrypted store, hub, coordinator,
// clearer, badge, status file) against an httptest listener.
type testDaemon struct {
	dataDir    string
	store      *infra.EncryptedSettingsStore
	statusFile *infra.StatusFile
	hub        *transport.Hub
	coord      *coordinator.Coordinator
	server     *httptest.Server
	wsURL      string
}

func startTestDaemon(dataDir string) *testDaemon {
	logger := zap.NewNop()

	key, err := infra.EnsureKey(infra.NewFileKeyProvider(dataDir))
	Expect(err).NotTo(HaveOccurred())

	store, err := infra.NewEncryptedSettingsStore(dataDir, key)
	Expect(err).NotTo(HaveOccurred())

	statusFile := infra.NewStatusFile(dataDir)
	badge := presenter.New(presenter.DefaultConfig(), func(snap domain.StatusSnapshot) {
		_ = statusFile.Write(snap)
	}, logger)

	d := &testDaemon{dataDir: dataDir, store: store, statusFile: statusFile}

	d.hub = transport.NewHub(authToken, func(session domain.SessionInfo, env domain.Envelope) domain.Response {
		return d.coord.HandleMessage(session, env)
	}, logger)

	chain := clearer.New(clearer.DefaultConfig(), d.hub, nil, nil, logger)

	coordCfg := coordinator.DefaultConfig()
	coordCfg.Second = 20 * time.Millisecond
	d.coord = coordinator.New(coordCfg, store, chain, badge, logger)
	d.coord.Start()

	d.server = httptest.NewServer(d.hub.Router())
	d.wsURL = strings.Replace(d.server.URL, "http://", "ws://", 1) + "/ws"
	return d
}

func (d *testDaemon) stop() {
	_ = d.hub.Shutdown(context.Background())
	d.server.Close()
	d.coord.Stop()
	_ = d.store.Close()
}

func dialAgent(wsURL, sourceURL string, clears *atomic.Int32) *transport.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := transport.Dial(ctx, wsURL, authToken, domain.RoleAgent, sourceURL,
		func(env domain.Envelope) domain.Response {
			if env.Kind == domain.MsgClearClipboardRequest {
				clears.Add(1)
				return domain.Response{Success: true}
			}
			return domain.Response{Success: false, Error: "unexpected command"}
		}, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return client
}

func dialUI(wsURL string) *transport.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := transport.Dial(ctx, wsURL, authToken, domain.RoleUI, "", nil, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return client
}

func sendEvent(client *transport.Client, kind domain.MsgKind, payload any) domain.Response {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	env, err := domain.NewEnvelope("", kind, payload)
	Expect(err).NotTo(HaveOccurred())
	resp, err := client.Request(ctx, env)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

var _ = Describe("Paste to clear flow", func() {
	var (
		daemon *testDaemon
		agent  *transport.Client
		clears atomic.Int32
	)

	BeforeEach(func() {
		daemon = startTestDaemon(GinkgoT().TempDir())
		clears.Store(0)
		agent = dialAgent(daemon.wsURL, "https://site.example/login", &clears)

		// Tight delay so specs run fast: one shrunken second is 20ms.
		resp := sendEvent(dialUI(daemon.wsURL), domain.MsgUpdateSettings, domain.UpdateSettings{Interval: 2})
		Expect(resp.Success).To(BeTrue())
	})

	AfterEach(func() {
		agent.Close()
		daemon.stop()
	})

	Context("when an agent reports a paste", func() {
		It("counts down and pushes the clear to that agent", func() {
			resp := sendEvent(agent, domain.MsgPasteDetected, domain.PasteDetected{
				TimestampMs: time.Now().UnixMilli(),
			})
			Expect(resp.Success).To(BeTrue())

			Eventually(func() int32 { return clears.Load() }, "2s", "5ms").Should(Equal(int32(1)))
			Consistently(func() int32 { return clears.Load() }, "200ms", "20ms").Should(Equal(int32(1)))
		})

		It("projects the countdown into the status file", func() {
			sendEvent(agent, domain.MsgPasteDetected, domain.PasteDetected{
				TimestampMs: time.Now().UnixMilli(),
			})

			Eventually(func() domain.Phase {
				snap, err := daemon.statusFile.Read()
				if err != nil || snap == nil {
					return ""
				}
				return snap.Phase
			}, "1s", "5ms").Should(Equal(domain.PhaseCountingDown))

			Eventually(func() string {
				snap, _ := daemon.statusFile.Read()
				if snap == nil {
					return ""
				}
				return snap.Badge
			}, "2s", "5ms").Should(Equal("✓"))
		})

		It("debounces a second paste instead of stacking clears", func() {
			sendEvent(agent, domain.MsgPasteDetected, domain.PasteDetected{TimestampMs: 1})
			time.Sleep(25 * time.Millisecond)
			sendEvent(agent, domain.MsgPasteDetected, domain.PasteDetected{TimestampMs: 2})

			Eventually(func() int32 { return clears.Load() }, "2s", "5ms").Should(Equal(int32(1)))
			Consistently(func() int32 { return clears.Load() }, "200ms", "20ms").Should(Equal(int32(1)))
		})
	})

	Context("when the UI disables clearing mid-countdown", func() {
		It("cancels without clearing", func() {
			sendEvent(agent, domain.MsgPasteDetected, domain.PasteDetected{TimestampMs: 1})

			ui := dialUI(daemon.wsURL)
			defer ui.Close()
			resp := sendEvent(ui, domain.MsgToggleExtension, domain.ToggleExtension{Enabled: false})
			Expect(resp.Success).To(BeTrue())

			Consistently(func() int32 { return clears.Load() }, "300ms", "20ms").Should(BeZero())
		})
	})

	Context("when the UI requests an immediate clear", func() {
		It("runs the chain right away via the active agent", func() {
			sendEvent(agent, domain.MsgPasteDetected, domain.PasteDetected{TimestampMs: 1})

			ui := dialUI(daemon.wsURL)
			defer ui.Close()
			resp := sendEvent(ui, domain.MsgClearClipboardNow, nil)
			Expect(resp.Success).To(BeTrue())
			Expect(resp.Message).To(Equal("clipboard cleared"))
			Expect(clears.Load()).To(Equal(int32(1)))

			// The canceled countdown never fires a second clear.
			Consistently(func() int32 { return clears.Load() }, "300ms", "20ms").Should(Equal(int32(1)))
		})
	})
})

var _ = Describe("Settings persistence", func() {
	It("survives a daemon restart", func() {
		dataDir := GinkgoT().TempDir()

		daemon := startTestDaemon(dataDir)
		ui := dialUI(daemon.wsURL)
		resp := sendEvent(ui, domain.MsgUpdateSettings, domain.UpdateSettings{Interval: 120})
		Expect(resp.Success).To(BeTrue())
		resp = sendEvent(ui, domain.MsgUpdatePasswordOnly, domain.UpdatePasswordOnly{Value: true})
		Expect(resp.Success).To(BeTrue())
		ui.Close()
		daemon.stop()

		daemon = startTestDaemon(dataDir)
		defer daemon.stop()

		ui = dialUI(daemon.wsURL)
		defer ui.Close()
		Eventually(func() int {
			resp := sendEvent(ui, domain.MsgGetSettings, nil)
			if resp.Settings == nil {
				return 0
			}
			return resp.Settings.ClearDelaySeconds
		}, "2s", "10ms").Should(Equal(120))

		resp = sendEvent(ui, domain.MsgGetSettings, nil)
		Expect(resp.Settings.ClearOnlyOnPasswordPaste).To(BeTrue())
	})
})

var _ = Describe("Privileged agent sessions", func() {
	It("falls back past a privileged active session", func() {
		daemon := startTestDaemon(GinkgoT().TempDir())
		defer daemon.stop()

		var privClears, plainClears atomic.Int32
		priv := dialAgent(daemon.wsURL, "chrome://extensions", &privClears)
		defer priv.Close()
		plain := dialAgent(daemon.wsURL, "https://site.example", &plainClears)
		defer plain.Close()

		ui := dialUI(daemon.wsURL)
		defer ui.Close()
		sendEvent(ui, domain.MsgUpdateSettings, domain.UpdateSettings{Interval: 1})

		// The privileged session reports the paste, making it active. The
		// clear must still run elsewhere.
		sendEvent(priv, domain.MsgPasteDetected, domain.PasteDetected{TimestampMs: 1})

		Eventually(func() int32 { return plainClears.Load() }, "2s", "5ms").Should(Equal(int32(1)))
		Expect(privClears.Load()).To(BeZero())
	})
})

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conductorhq/conductor/internal/askuser"
	"github.com/conductorhq/conductor/internal/catalog"
	"github.com/conductorhq/conductor/internal/config"
	"github.com/conductorhq/conductor/internal/fanout"
	"github.com/conductorhq/conductor/internal/gatewayhttp"
	"github.com/conductorhq/conductor/internal/memstore"
	"github.com/conductorhq/conductor/internal/network"
	"github.com/conductorhq/conductor/internal/notify"
	"github.com/conductorhq/conductor/internal/observability/metrics"
	"github.com/conductorhq/conductor/internal/permission"
	"github.com/conductorhq/conductor/internal/sandboxexec"
	"github.com/conductorhq/conductor/internal/session"
	"github.com/conductorhq/conductor/internal/store"
	"github.com/conductorhq/conductor/internal/taskapp"
	"github.com/conductorhq/conductor/internal/toolserver"
	agenttools "github.com/conductorhq/conductor/internal/toolserver/agent"
	askusertools "github.com/conductorhq/conductor/internal/toolserver/askuser"
	memorytools "github.com/conductorhq/conductor/internal/toolserver/memory"
	notifytools "github.com/conductorhq/conductor/internal/toolserver/notify"
	sandboxexectools "github.com/conductorhq/conductor/internal/toolserver/sandboxexec"
	"github.com/conductorhq/conductor/internal/toolserver/taskapprun"
	"github.com/conductorhq/conductor/internal/toolserver/taskmanagement"
	vcstools "github.com/conductorhq/conductor/internal/toolserver/vcs"
	"github.com/conductorhq/conductor/internal/toolserver/websearch"
	"github.com/conductorhq/conductor/internal/vcs"
	"github.com/conductorhq/conductor/pkg/models"
)

// catalogSyncInterval bounds how stale the durable network catalog can
// get relative to the in-memory Manager it mirrors.
const catalogSyncInterval = 5 * time.Second

// runtime wires together every package a running Conductor process
// needs, grounded on the teacher's gateway.ManagedServer: one long-lived
// struct owning every subsystem's lifecycle, built once by runServe and
// torn down once on shutdown.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	hub     *fanout.Hub
	engine  *permission.Engine
	catalog *catalog.Catalog
	store   *store.Root
	mgr     *network.Manager
	gateway *gatewayhttp.Server
	askUser *askuser.Coordinator

	notifier *notify.Notifier
	memStore *memstore.Store
	fetcher  *websearch.Fetcher

	mu       sync.Mutex
	projects map[string]*projectTools
}

// projectTools bundles the working-directory-scoped tool servers and
// router shared by every agent spawned within one network, built lazily
// the first time an agent is spawned for that working directory.
type projectTools struct {
	router     *toolserver.Router
	taskAppMgr *taskapp.Manager
}

// newRuntime loads settings.json and constructs every long-lived
// component, building the network.Manager last (it takes the runtime's
// own spawn method as a constructor argument) and then the gatewayhttp
// server over it.
func newRuntime(cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	settings, err := loadSettings(cfg.Permission.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("conductor: load settings: %w", err)
	}

	catalogPath := filepath.Join(cfg.Store.RootDir, "catalog.db")
	if err := os.MkdirAll(cfg.Store.RootDir, 0o755); err != nil {
		return nil, fmt.Errorf("conductor: create store root: %w", err)
	}
	cat, err := catalog.Open(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("conductor: open catalog: %w", err)
	}

	m := metrics.New()
	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		hub:      fanout.New(m),
		engine:   permission.New(&settings.Permissions, permission.AskUserBehavior(cfg.Permission.Behavior), permission.NewGitignoreChecker()),
		catalog:  cat,
		store:    store.NewRoot(cfg.Store.RootDir),
		notifier: notify.New(cfg.Tools.Notify.WebhookURL, cfg.Tools.Notify.RatePerSecond, cfg.Tools.Notify.Burst),
		memStore: memstore.New(store.NewRoot(cfg.Store.RootDir)),
		fetcher:  websearch.NewFetcher(),
		askUser:  askuser.New(),
		projects: make(map[string]*projectTools),
	}

	rt.mgr = network.New(rt.store, rt.spawn)
	rt.gateway = gatewayhttp.New(rt.mgr, rt.hub, rt.metrics, rt.logger, rt.askUser)
	return rt, nil
}

// loadSettings reads the JSON permission settings file at path. A
// missing file is not an error: Conductor runs with an empty allow/deny/
// ask list (every decision falls through to AskUserBehavior) until the
// host writes one.
func loadSettings(path string) (*models.Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var settings models.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &settings, nil
}

// spawn is the network.SpawnFunc bound to this runtime: it lazily builds
// the working-directory-scoped tool servers, constructs a session.Config
// tagged with the Manager-assigned identities, and starts the subprocess.
func (rt *runtime) spawn(ctx context.Context, networkID models.NetworkID, agentID models.AgentID, agentType models.AgentType, agentName string, cfg models.AgentConfiguration, workingDirectory, initialPrompt string) (network.SessionHandle, error) {
	tools := rt.projectToolsFor(networkID, workingDirectory)

	// Record lineage so the main agent's "main" subscribers also receive
	// this agent's events.
	mainID := agentID
	if agentType != models.AgentTypeMain {
		if net, err := rt.mgr.GetNetwork(networkID); err == nil {
			if main := net.MainAgent(); main != nil {
				mainID = main.ID
			}
		}
	}
	rt.hub.RegisterAgent(agentID, mainID)

	sess := session.New(session.Config{
		Command: rt.cfg.Session.Command,
		Args:    rt.cfg.Session.Args,
		Dir:     workingDirectory,

		PermissionEngine: rt.engine,
		ToolServers:      tools.router,
		Events:           rt.hub,
		Logger:           rt.logger,

		AgentID:   agentID,
		AgentType: agentType,
		AgentName: agentName,
	})
	if err := sess.Start(ctx); err != nil {
		return nil, fmt.Errorf("conductor: start session for agent %s: %w", agentID, err)
	}
	if initialPrompt != "" {
		if err := sess.EnqueueUserMessage(ctx, initialPrompt); err != nil {
			return nil, fmt.Errorf("conductor: enqueue initial prompt: %w", err)
		}
	}
	return sess, nil
}

// projectToolsFor returns the shared tool-server bundle for
// workingDirectory, building it on first use. Every agent in the same
// network (and so, today, every agent at the same working directory)
// shares one bundle: the network's task-app runtime and VCS/sandbox
// clients are project-scoped, not agent-scoped.
func (rt *runtime) projectToolsFor(networkID models.NetworkID, workingDirectory string) *projectTools {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if existing, ok := rt.projects[workingDirectory]; ok {
		return existing
	}

	vision := newHTTPVisionBackend(rt.cfg.Tools.TaskApp.VisionBackendURL)
	taskAppMgr := taskapp.New(workingDirectory, vision)
	vcsClient := vcs.New(workingDirectory)
	executor := sandboxexec.New(workingDirectory)

	router := toolserver.NewRouter(rt.metrics)
	router.Mount(agenttools.New(rt.mgr, networkID, workingDirectory, resolveAgentType))
	router.Mount(taskmanagement.New(rt.mgr, networkID))
	router.Mount(memorytools.New(rt.memStore, workingDirectory))
	router.Mount(vcstools.New(vcsClient))
	router.Mount(sandboxexectools.New(executor))
	router.Mount(taskapprun.New(taskAppMgr))
	router.Mount(websearch.New(rt.fetcher))
	router.Mount(notifytools.New(rt.notifier, networkID))
	router.Mount(askusertools.New(rt.askUser))

	tools := &projectTools{router: router, taskAppMgr: taskAppMgr}
	rt.projects[workingDirectory] = tools
	return tools
}

// resolveAgentType implements agenttools.SpawnFactory for Conductor's
// built-in agent types. User-defined agent definitions (spec.md §3's
// AgentConfiguration loaded from a project's agent definition files) are
// not yet wired into this resolver; spawning "userDefined" fails until a
// definition loader exists.
func resolveAgentType(agentType string) (models.AgentConfiguration, models.AgentType, error) {
	switch models.AgentType(agentType) {
	case models.AgentTypeImplementation, models.AgentTypeContextCollection, models.AgentTypePlanning, models.AgentTypeTester:
		return models.AgentConfiguration{ID: agentType}, models.AgentType(agentType), nil
	default:
		return models.AgentConfiguration{}, "", fmt.Errorf("conductor: unknown agent type %q", agentType)
	}
}

// httpVisionBackend drives a guest task app's UI via a sidecar HTTP
// vision service, grounded on internal/toolserver/websearch.Fetcher's
// bounded http.Client usage.
type httpVisionBackend struct {
	baseURL string
	client  *http.Client
}

// newHTTPVisionBackend returns the taskapp.VisionBackend interface value
// directly (rather than a *httpVisionBackend) so that an empty baseURL
// produces a true nil interface: taskapp.New's own "vision == nil" check
// only sees through that, not through a non-nil interface wrapping a nil
// pointer.
func newHTTPVisionBackend(baseURL string) taskapp.VisionBackend {
	if baseURL == "" {
		return nil
	}
	return &httpVisionBackend{baseURL: baseURL, client: &http.Client{Timeout: 15 * time.Second}}
}

func (b *httpVisionBackend) Screenshot(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/screenshot", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision backend: screenshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision backend: screenshot returned %s", resp.Status)
	}
	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if readErr != nil {
			break
		}
	}
	return buf, nil
}

func (b *httpVisionBackend) UIAction(ctx context.Context, action string, params map[string]any) (string, error) {
	body, err := json.Marshal(map[string]any{"action": action, "params": params})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/action", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision backend: ui action: %w", err)
	}
	defer resp.Body.Close()
	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("vision backend: decode response: %w", err)
	}
	return result.Result, nil
}

// syncCatalog mirrors every in-memory network into the durable catalog
// on a fixed interval until ctx is canceled, grounded on the teacher's
// internal/gateway/lifecycle.go periodic cleanup ticker.
func (rt *runtime) syncCatalog(ctx context.Context) {
	ticker := time.NewTicker(catalogSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.syncCatalogOnce(ctx)
		}
	}
}

func (rt *runtime) syncCatalogOnce(ctx context.Context) {
	for _, net := range rt.mgr.ListNetworks() {
		if err := rt.catalog.Record(ctx, catalog.SummaryOf(net)); err != nil {
			rt.logger.Warn("conductor: catalog sync failed", "network_id", net.ID, "error", err)
		}
	}
}

// Close releases the runtime's own resources. It does not stop the
// gatewayhttp server; callers own that lifecycle separately via
// rt.gateway.Stop.
func (rt *runtime) Close() error {
	rt.askUser.Dispose()
	return rt.catalog.Close()
}

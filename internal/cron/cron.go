package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailingest/config"
	"github.com/customeros/mailingest/dto"
	"github.com/customeros/mailingest/interfaces"
	cron_config "github.com/customeros/mailingest/internal/cron/config"
	"github.com/customeros/mailingest/internal/logger"
	"github.com/customeros/mailingest/internal/tracing"
	"github.com/customeros/mailingest/internal/utils"
)

// CONSTANTS
const (
	// GroupIngestion is the group for ingestion related jobs
	GroupIngestion = "ingestion"

	// TriggerCron marks ingestion jobs queued by the scheduler
	TriggerCron = "cron"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupIngestion: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg       *config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	k8s       kubernetes.Interface
	stopCh    chan struct{}
	stopOnce  sync.Once
	jobIDs    map[string]cronv3.EntryID
	accounts  interfaces.EmailAccountRepository
	publisher interfaces.EventPublisher
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, accounts interfaces.EmailAccountRepository, publisher interfaces.EventPublisher) *CronManager {
	return &CronManager{
		cfg:       cfg,
		log:       log,
		k8s:       k8s,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
		accounts:  accounts,
		publisher: publisher,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailingest-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-cm.stopCh
			cancel()
		}()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager. Safe to call more than once.
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		if cm.cron != nil {
			cm.log.Info("Stopping cron manager")
			ctx := cm.cron.Stop()
			// Wait for jobs to finish
			<-ctx.Done()
		}
		close(cm.stopCh)
	})
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleIngestAccounts != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleIngestAccounts, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupIngestion].Lock()
			defer jobLocks.locks[GroupIngestion].Unlock()
			cm.ingestAccounts()
		})
		if err != nil {
			cm.log.Fatalf("Could not add ingest accounts cron job: %v", err)
		}
		cm.jobIDs["ingest_accounts"] = id
		cm.log.Infof("Registered ingest accounts job with schedule: %s", cronConfig.CronScheduleIngestAccounts)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) ingestAccounts() {
	ctx := utils.SetAppSourceInContext(context.Background(), "mailingest-cron")

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.ingestAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	queued, err := cm.EnqueueActiveAccounts(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to queue ingestion jobs: %v", err)
		return
	}
	span.LogKV("queued", queued)
	cm.log.Infof("Queued ingestion for %d active accounts", queued)
}

// EnqueueActiveAccounts publishes one IngestAccount job per active account and returns how many
// were queued. A failed publish for one account does not stop the others.
func (cm *CronManager) EnqueueActiveAccounts(ctx context.Context) (int, error) {
	if cm.publisher == nil {
		return 0, errors.New("job queue is not configured")
	}
	accounts, err := cm.accounts.ListByActive(ctx, true)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, account := range accounts {
		err := cm.publisher.PublishIngestAccount(ctx, dto.IngestAccount{AccountID: account.ID, Trigger: TriggerCron})
		if err != nil {
			cm.log.Errorf("Failed to queue ingestion for account %s: %v", account.ID, err)
			continue
		}
		queued++
	}
	return queued, nil
}

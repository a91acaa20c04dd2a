package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"beehive/internal/hiveapi"
	"beehive/internal/worker"
)

// SweepInit runs the background sweeper: an asynq scheduler enqueues a
// sweep task every SweepIntervalMin minutes and the server consumes it.
// The admin endpoint enqueues the same task type for an off-schedule run.
func SweepInit() {
	AppSweep = hiveapi.InitSweeper()

	interval := hiveapi.CurrentAppConfig.Settings.SweepIntervalMin
	if interval < 1 {
		interval = 5
	}
	if _, err := AppSweep.Sch.Register(
		fmt.Sprintf("@every %dm", interval),
		asynq.NewTask(hiveapi.SweepTaskType, nil, asynq.Queue("rewards")),
	); err != nil {
		log.Fatal("Failed to register sweep schedule: ", err)
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(hiveapi.SweepTaskType, handleSweepTask)

	go func() {
		if err := AppSweep.Sch.Run(); err != nil {
			log.Fatal("Failed to run sweep scheduler: ", err)
		}
	}()
	fmt.Println("[ Beehive Sweeper is up ]")
	if err := AppSweep.Aqs.Run(mux); err != nil {
		log.Fatal("Failed to run sweeper: ", err)
	}
}

type sweepRewardTask struct {
	engine   *hiveapi.TimerEngine
	store    hiveapi.Store
	rewardId string
	now      time.Time
	outcomes chan<- string
}

func (t *sweepRewardTask) Execute() {
	outcome, err := t.engine.ProcessDue(t.store, t.rewardId, t.now)
	if err != nil {
		log.Println("Sweep: reward", t.rewardId, "failed:", err)
		outcome = hiveapi.SweepSkipped
	}
	t.outcomes <- outcome
}

func handleSweepTask(ctx context.Context, task *asynq.Task) error {
	settings := hiveapi.CurrentAppConfig.Settings
	engine := hiveapi.NewTimerEngine(settings)
	store := hiveapi.NewStore(AppSweep.Db)
	now := time.Now()

	due, err := store.DueRewards(now, settings.SweepBatch)
	if err != nil {
		return err
	}
	report := hiveapi.SweepReport{Scanned: len(due)}
	if len(due) > 0 {
		workers := settings.SweepWorkers
		if workers < 1 {
			workers = 1
		}
		pool := worker.NewPool(workers, len(due))
		outcomes := make(chan string, len(due))
		for i := range due {
			pool.Exec(&sweepRewardTask{
				engine:   engine,
				store:    store,
				rewardId: due[i].Id,
				now:      now,
				outcomes: outcomes,
			})
		}
		pool.Close()
		for range due {
			switch <-outcomes {
			case hiveapi.SweepReallocated:
				report.Reallocated++
			case hiveapi.SweepExpired:
				report.Expired++
			default:
				report.Skipped++
			}
		}
		pool.Wait()
	}

	if report.Reallocated > 0 || report.Expired > 0 {
		payload, _ := json.Marshal(report)
		fmt.Println("Sweep report:", string(payload))
		msg := fmt.Sprintf(
			"Reward sweep: %s reallocated, %s expired",
			hiveapi.EscapeMarkdownV2(fmt.Sprintf("%d", report.Reallocated)),
			hiveapi.EscapeMarkdownV2(fmt.Sprintf("%d", report.Expired)),
		)
		if err := hiveapi.SendTelegramMessage(msg, "rewards"); err != nil {
			fmt.Println(err)
		}
	}
	return nil
}

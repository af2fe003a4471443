package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"richmenu-editor/internal/repository"
	"richmenu-editor/internal/service"
	"richmenu-editor/internal/tasks"
)

// WorkerServer 封装 asynq 消费端：注册全部任务处理器并管理生命周期。
type WorkerServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorkerServer 创建并配置 Worker 服务器
func NewWorkerServer(
	redisOpt asynq.RedisClientOpt,
	projectService *service.ProjectService,
	stateRepo repository.StateRepository,
	rooms RoomLister,
) *WorkerServer {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				taskID, _ := asynq.GetTaskID(ctx)
				logrus.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retried":   retried,
					"max_retry": maxRetry,
				}).WithError(err).Error("Task processing failed")
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeAreasPersistence, NewAreasPersistenceHandler(projectService))
	mux.Handle(tasks.TypeMetadataPersistence, NewMetadataPersistenceHandler(projectService))
	mux.Handle(tasks.TypePresenceSweep, NewPresenceSweepHandler(stateRepo, rooms))

	return &WorkerServer{server: srv, mux: mux}
}

// Start 启动 Worker（非阻塞，内部 goroutine 消费队列）。
func (w *WorkerServer) Start() error {
	logrus.Info("Starting asynq worker server...")
	return w.server.Start(w.mux)
}

// Shutdown 等待进行中的任务完成后停止 Worker。
func (w *WorkerServer) Shutdown() {
	logrus.Info("Shutting down asynq worker server...")
	w.server.Shutdown()
}

package eventbus

import (
	"github.com/annel0/ecs-world/internal/logging"
)

// StartLoggingListener подписывается на все события шины и пишет их в лог уровня DEBUG.
// Возвращает Handle для отписки.
func StartLoggingListener(bus *Bus) Handle {
	h := bus.OnAll(func(ev Event) {
		logging.Debug("[EventBus] #%d %s keys=%d", ev.Seq, ev.Type, len(ev.Payload))
	})
	logging.Info("🪵 LoggingListener: подписка на все события активирована")
	return h
}

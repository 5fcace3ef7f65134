// event-tail — консольный потребитель событий мира из NATS JetStream.
//
// Примеры:
//
//	event-tail -cmd tail -follow                  # живой хвост всех событий
//	event-tail -cmd tail -types collision -limit 20
//	event-tail -cmd stats -since 10m              # счётчики по типам за 10 минут
//	event-tail -cmd types -since 1h               # какие типы встречались
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/annel0/ecs-world/internal/eventbus"
	nats "github.com/nats-io/nats.go"
)

const idleTimeout = 2 * time.Second

func main() {
	server := flag.String("server", nats.DefaultURL, "адрес NATS сервера")
	stream := flag.String("stream", "WORLD_EVENTS", "имя JetStream стрима")
	types := flag.String("types", "", "фильтр типов событий через запятую (пусто — все)")
	since := flag.Duration("since", 0, "глубина истории (например 10m; 0 — с начала стрима)")
	limit := flag.Int("limit", 0, "максимум событий (0 — без ограничения)")
	follow := flag.Bool("follow", false, "не выходить после исчерпания истории")
	cmd := flag.String("cmd", "tail", "команда: tail | stats | types")
	flag.Parse()

	if err := run(*server, *stream, *types, *since, *limit, *follow, *cmd); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func run(server, stream, typesCSV string, since time.Duration, limit int, follow bool, cmd string) error {
	nc, err := nats.Connect(server, nats.Name("event-tail"))
	if err != nil {
		return fmt.Errorf("подключение к NATS %s: %w", server, err)
	}
	defer nc.Drain()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		return fmt.Errorf("стрим %q недоступен: %w", stream, err)
	}

	opts := []nats.SubOpt{
		nats.BindStream(stream),
		nats.OrderedConsumer(),
	}
	if since > 0 {
		opts = append(opts, nats.StartTime(time.Now().Add(-since)))
	} else {
		opts = append(opts, nats.DeliverAll())
	}

	sub, err := js.SubscribeSync("world.events.>", opts...)
	if err != nil {
		return fmt.Errorf("подписка: %w", err)
	}
	defer sub.Unsubscribe()

	wanted := parseTypes(typesCSV)

	switch cmd {
	case "tail":
		return tail(sub, wanted, limit, follow)
	case "stats":
		return stats(sub, wanted, limit)
	case "types":
		return listTypes(sub, limit)
	default:
		return fmt.Errorf("неизвестная команда %q (ожидается tail, stats или types)", cmd)
	}
}

// parseTypes разбирает CSV-фильтр типов; nil означает «все типы».
func parseTypes(csv string) map[string]bool {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	wanted := make(map[string]bool)
	for _, t := range strings.Split(csv, ",") {
		if t = strings.TrimSpace(t); t != "" {
			wanted[t] = true
		}
	}
	return wanted
}

// next читает следующий конверт; (nil, nil) означает исчерпание истории.
func next(sub *nats.Subscription, follow bool) (*eventbus.Envelope, error) {
	timeout := idleTimeout
	if follow {
		timeout = time.Hour
	}

	msg, err := sub.NextMsg(timeout)
	if err == nats.ErrTimeout {
		if follow {
			return next(sub, follow)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var env eventbus.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		return nil, fmt.Errorf("разбор конверта: %w", err)
	}
	return &env, nil
}

func matches(env *eventbus.Envelope, wanted map[string]bool) bool {
	return wanted == nil || wanted[env.EventType]
}

// tail печатает события по одному на строку по мере поступления.
func tail(sub *nats.Subscription, wanted map[string]bool, limit int, follow bool) error {
	printed := 0
	for {
		env, err := next(sub, follow)
		if err != nil {
			return err
		}
		if env == nil {
			return nil
		}
		if !matches(env, wanted) {
			continue
		}

		payload, _ := json.Marshal(env.Payload)
		fmt.Printf("%s  %-28s %s\n",
			env.Timestamp.Local().Format("15:04:05.000"), env.EventType, payload)

		printed++
		if limit > 0 && printed >= limit {
			return nil
		}
	}
}

// stats собирает счётчики по типам до исчерпания истории.
func stats(sub *nats.Subscription, wanted map[string]bool, limit int) error {
	counts := make(map[string]int)
	total := 0

	for {
		env, err := next(sub, false)
		if err != nil {
			return err
		}
		if env == nil {
			break
		}
		if !matches(env, wanted) {
			continue
		}
		counts[env.EventType]++
		total++
		if limit > 0 && total >= limit {
			break
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return counts[names[i]] > counts[names[j]] })

	fmt.Printf("Всего событий: %d\n", total)
	for _, name := range names {
		fmt.Printf("%8d  %s\n", counts[name], name)
	}
	return nil
}

// listTypes печатает отсортированный список встретившихся типов событий.
func listTypes(sub *nats.Subscription, limit int) error {
	seen := make(map[string]bool)
	total := 0

	for {
		env, err := next(sub, false)
		if err != nil {
			return err
		}
		if env == nil {
			break
		}
		seen[env.EventType] = true
		total++
		if limit > 0 && total >= limit {
			break
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

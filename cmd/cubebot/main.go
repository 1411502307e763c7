// Command cubebot connects a crowd of bots to a game server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"agcubio-server/client"
	"agcubio-server/config"
	"agcubio-server/world"
)

func main() {
	addr := flag.String("addr", fmt.Sprintf("localhost:%d", config.Default().GamePortNumber), "game server host:port")
	count := flag.Int("n", 8, "number of bots")
	every := flag.Duration("interval", 100*time.Millisecond, "time between bot decisions")
	minSplit := flag.Float64("min-split", config.Default().MinimumSplitMass, "server's minimum split mass")
	respawn := flag.Duration("respawn", 3*time.Second, "delay before a dead bot rejoins")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for i := range *count {
		name := fmt.Sprintf("%s-%d", botNames[i%len(botNames)], i)
		rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if err := play(ctx, *addr, name, NewBot(rng, *minSplit), *every); err != nil {
					log.Printf("bot %s: %v", name, err)
				}
				select {
				case <-ctx.Done():
				case <-time.After(*respawn):
				}
			}
		}()
	}
	log.Printf("%d bots playing on %s", *count, *addr)

	wg.Wait()
	log.Println("bots stopped")
	os.Exit(0)
}

// play runs one life of a bot: join, steer until eaten or cancelled.
func play(ctx context.Context, addr, name string, bot *Bot, every time.Duration) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, addr, name)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return fmt.Errorf("connection ended")
		case <-ticker.C:
		}

		var d Decision
		alive := false
		c.View(func(w *world.World, self int) { d, alive = bot.Decide(w, self) })
		if !alive {
			return fmt.Errorf("eaten")
		}

		send := c.Move
		if d.Split {
			send = c.Split
		}
		if err := send(int(d.Target.X), int(d.Target.Y)); err != nil {
			return err
		}
	}
}

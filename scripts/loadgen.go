/*
	Churn-heavy load generator: several workers create, read, update and
	delete records drawn from a small key universe so that buckets are
	contended and rewritten constantly.
*/

package main

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xRadioAc7iv/go-rmp/client"
	"github.com/0xRadioAc7iv/go-rmp/internal/config"
	"github.com/0xRadioAc7iv/go-rmp/internal/record"
)

const (
	concurrency = 6

	// Fixed universe
	totalKeys  = 100
	totalNames = 100

	// Per-cycle behavior
	keysPerCycleWrite  = 20
	keysPerCycleDelete = 10
	cyclesPerWorker    = 500

	sleepBetweenCycles = 10 * time.Millisecond

	progressEvery = 50
)

type counters struct {
	ok       atomic.Int64
	rejected atomic.Int64 // exists / not found, expected under churn
	failed   atomic.Int64
}

// count counts one outcome and reports whether it was a real failure.
func (c *counters) count(ok bool, msg string) bool {
	switch {
	case ok:
		c.ok.Add(1)
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "does not exist"):
		c.rejected.Add(1)
	default:
		c.failed.Add(1)
		return true
	}
	return false
}

func main() {
	start := time.Now()
	fmt.Println("Starting rmp churn-heavy load generator")

	keys := makeKeys(totalKeys)
	names := makeNames(totalNames)
	c := client.New(
		client.WithHost(config.DefaultHost),
		client.WithPort(config.DefaultPort),
		client.WithDialTimeout(5*time.Second),
	)

	var stats counters
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWorker(id, c, keys, names, &stats)
		}(i)
	}

	wg.Wait()
	fmt.Printf("Load finished in %v: ok=%d rejected=%d failed=%d\n",
		time.Since(start), stats.ok.Load(), stats.rejected.Load(), stats.failed.Load())
}

func runWorker(id int, c *client.Client, keys, names []string, stats *counters) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	pick := func(s []string) string { return s[rng.Intn(len(s))] }

	for cycle := 1; cycle <= cyclesPerWorker; cycle++ {

		// ---- CREATE / UPDATE PHASE ----
		for i := 0; i < keysPerCycleWrite; i++ {
			key := pick(keys)
			ok, msg := c.Create(key, record.Attributes{
				"name":  pick(names),
				"phone": fmt.Sprintf("%010d", rng.Intn(1e9)),
			})
			if !ok && strings.Contains(msg, "already exists") {
				ok, msg = c.Update(key, record.Attributes{"phone": fmt.Sprintf("%010d", rng.Intn(1e9))})
			}
			if stats.count(ok, msg) {
				fmt.Printf("[worker %d] CREATE error: %s\n", id, msg)
				return
			}
		}

		// ---- READ PHASE ----
		for i := 0; i < keysPerCycleWrite; i++ {
			if ok, msg := c.Read(pick(keys)); stats.count(ok, msg) {
				fmt.Printf("[worker %d] READ error: %s\n", id, msg)
				return
			}
		}

		// ---- DELETE PHASE ----
		for i := 0; i < keysPerCycleDelete; i++ {
			if ok, msg := c.Delete(pick(keys)); stats.count(ok, msg) {
				fmt.Printf("[worker %d] DELETE error: %s\n", id, msg)
				return
			}
		}

		if cycle%progressEvery == 0 {
			fmt.Printf("[worker %d] completed %d cycles\n", id, cycle)
		}

		if sleepBetweenCycles > 0 {
			time.Sleep(sleepBetweenCycles)
		}
	}
}

func makeKeys(n int) []string {
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("user-%03d@example.com", i)
	}
	return keys
}

func makeNames(n int) []string {
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("User %03d", i)
	}
	return names
}

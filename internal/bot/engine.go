package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/Effex-D/twitch-bot/internal/metrics"
	"github.com/jonboulle/clockwork"
)

const (
	minPrizes = 1
	maxPrizes = 5

	// One in easterEggOdds prizes is drawn from the abstracts list
	// instead of the adjective+noun composition.
	easterEggOdds = 20

	lightsCooldown = 5 * time.Minute
)

const (
	echoUsage   = "Usage: !echo <text>"
	lightsUsage = "Usage: !lights <colour name or #hex>"
)

// LightsController forwards a colour change to the local lights API.
type LightsController interface {
	SetColour(ctx context.Context, value string) error
}

// Engine dispatches chat events to command handlers. Safe for concurrent
// use; the shared random source and the lights cooldown are the only
// mutable state.
type Engine struct {
	corpus *domain.PrizeCorpus
	clock  clockwork.Clock
	lights LightsController

	mu         sync.Mutex
	rng        *rand.Rand
	lastLights time.Time
}

// NewEngine creates a command engine over an immutable corpus.
// lights may be nil, which disables the !lights command entirely.
func NewEngine(corpus *domain.PrizeCorpus, clock clockwork.Clock, lights LightsController, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		corpus: corpus,
		clock:  clock,
		lights: lights,
		rng:    rng,
	}
}

// Dispatch parses one chat event into zero-or-one action.
func (e *Engine) Dispatch(ctx context.Context, event domain.ChatEvent) domain.Action {
	text := strings.TrimSpace(event.Text)
	if !strings.HasPrefix(text, "!") {
		return domain.NoOp()
	}

	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	args := fields[1:]

	switch command {
	case "!hello":
		metrics.CommandsDispatched.WithLabelValues("hello").Inc()
		return domain.Reply(fmt.Sprintf("Hey there, %s! o/", event.ChatterLogin))
	case "!echo":
		metrics.CommandsDispatched.WithLabelValues("echo").Inc()
		return e.echo(text)
	case "!help":
		metrics.CommandsDispatched.WithLabelValues("help").Inc()
		return domain.Reply(e.helpText())
	case "!prize":
		metrics.CommandsDispatched.WithLabelValues("prize").Inc()
		return e.prize(args, event.ChatterLogin)
	case "!lights":
		if e.lights == nil {
			return domain.NoOp()
		}
		metrics.CommandsDispatched.WithLabelValues("lights").Inc()
		return e.setLights(ctx, args)
	default:
		return domain.NoOp()
	}
}

// echo replies with everything after the command token, verbatim.
// A recognized command with missing arguments gets a usage hint, never
// silence.
func (e *Engine) echo(text string) domain.Action {
	rest := strings.TrimSpace(text[len("!echo"):])
	if rest == "" {
		return domain.Reply(echoUsage)
	}
	return domain.Reply(rest)
}

func (e *Engine) helpText() string {
	help := "Commands: !hello, !echo <text>, !prize [target] [count]"
	if e.lights != nil {
		help += ", !lights <colour>"
	}
	return help
}

// prize awards between 1 and 5 randomly composed prizes. Arguments are
// order-flexible: an integer token is the count, any other token is the
// target login. Target defaults to the invoker.
func (e *Engine) prize(args []string, invoker string) domain.Action {
	target := invoker
	count := 1

	sawTarget, sawCount := false, false
	for _, arg := range args {
		if n, err := strconv.Atoi(arg); err == nil {
			if !sawCount {
				count = n
				sawCount = true
			}
			continue
		}
		if !sawTarget {
			if login := strings.TrimPrefix(arg, "@"); login != "" {
				target = login
				sawTarget = true
			}
		}
	}

	count = min(max(count, minPrizes), maxPrizes)

	prizes := make([]string, count)
	for i := range prizes {
		prizes[i] = e.generatePrize()
	}

	if count == 1 {
		return domain.Reply(fmt.Sprintf("%s receives a prize: %s", target, prizes[0]))
	}
	return domain.Reply(fmt.Sprintf("%s receives %d prizes: %s", target, count, strings.Join(prizes, ", ")))
}

// generatePrize draws one adjective and one noun, with a 1-in-20 chance of
// an abstract prize instead when the abstracts list is populated.
func (e *Engine) generatePrize() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.corpus.Abstracts) > 0 && e.rng.Intn(easterEggOdds) == 0 {
		return e.corpus.Abstracts[e.rng.Intn(len(e.corpus.Abstracts))]
	}

	adjective := e.corpus.Adjectives[e.rng.Intn(len(e.corpus.Adjectives))]
	noun := e.corpus.Nouns[e.rng.Intn(len(e.corpus.Nouns))]
	return adjective + " " + noun
}

// setLights forwards the colour to the lights API under a global cooldown
// so chat cannot strobe the room.
func (e *Engine) setLights(ctx context.Context, args []string) domain.Action {
	if len(args) == 0 {
		return domain.Reply(lightsUsage)
	}
	value := strings.Join(args, " ")

	// Reserve the cooldown before calling out, so concurrent invocations
	// cannot both pass the check and double-hit the device. A failed call
	// rolls the reservation back.
	e.mu.Lock()
	now := e.clock.Now()
	remaining := lightsCooldown - now.Sub(e.lastLights)
	if !e.lastLights.IsZero() && remaining > 0 {
		e.mu.Unlock()
		mins := int(remaining.Minutes())
		secs := int(remaining.Seconds()) % 60
		return domain.Reply(fmt.Sprintf("Lights cooldown: try again in %dm %ds", mins, secs))
	}
	prev := e.lastLights
	e.lastLights = now
	e.mu.Unlock()

	if err := e.lights.SetColour(ctx, value); err != nil {
		e.mu.Lock()
		e.lastLights = prev
		e.mu.Unlock()
		slog.WarnContext(ctx, "Lights API call failed", "value", value, "error", err)
		return domain.Reply(fmt.Sprintf("Lights error: %v", err))
	}

	return domain.Reply(fmt.Sprintf("Lights set to %s", value))
}

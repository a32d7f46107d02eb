package qlearning

import (
	"log"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Strategy is the value function a Learner acts on and trains.
type Strategy[S any, A comparable] interface {
	// BestAction returns the legal action with the highest q-value, ties
	// broken at random. ok is false when no action is legal.
	BestAction(state S) (action A, ok bool)
	// Value is the highest q-value over legal actions, 0 if there are none.
	Value(state S) float64
	Update(state S, action A, next S, reward float64) error
}

// EpisodeResult summarises one finished episode.
type EpisodeResult struct {
	Episode int
	Steps   int
	Score   float64
	Reward  float64
	Epsilon float64
}

// Learner runs ε-greedy episodes for a Strategy and keeps running statistics.
type Learner[S any, A comparable] struct {
	// Epsilon is the probability of acting at random.
	Epsilon float64
	// EpsilonDecay multiplies Epsilon after every training episode.
	EpsilonDecay float64
	// MinEpsilon is the floor for Epsilon.
	MinEpsilon float64

	// Logger, when set, gets one line per episode.
	Logger *log.Logger
	// Observer, when set, is called after every episode.
	Observer func(EpisodeResult)

	agent    Agent[S, A]
	strategy Strategy[S, A]
	rng      *rand.Rand

	totalScore        float64
	totalRewards      float64
	episodesCompleted int
}

func newLearner[S any, A comparable](agent Agent[S, A], rng *rand.Rand) *Learner[S, A] {
	return &Learner[S, A]{
		Epsilon:      1,
		EpsilonDecay: 0.9,
		MinEpsilon:   0,
		agent:        agent,
		rng:          rng,
	}
}

// Action follows the strategy, except with probability Epsilon it picks a
// legal action uniformly at random. ok is false when no action is legal.
func (l *Learner[S, A]) Action(state S) (action A, ok bool) {
	legal := l.agent.LegalActions(state)
	if len(legal) == 0 {
		return action, false
	}
	if l.rng.Float64() < l.Epsilon {
		return legal[l.rng.Intn(len(legal))], true
	}
	return l.strategy.BestAction(state)
}

// PerformQLearning plays episodes, updating the strategy after every
// transition and decaying Epsilon after every episode.
func (l *Learner[S, A]) PerformQLearning(episodes int) error {
	for i := 0; i < episodes; i++ {
		if err := l.playEpisode(l.Action, true); err != nil {
			return err
		}
		l.decayEpsilon()
	}
	return nil
}

// PerformWithoutTraining plays greedy episodes without updating anything
// but the statistics.
func (l *Learner[S, A]) PerformWithoutTraining(episodes int) error {
	for i := 0; i < episodes; i++ {
		if err := l.playEpisode(l.strategy.BestAction, false); err != nil {
			return err
		}
	}
	return nil
}

func (l *Learner[S, A]) playEpisode(choose func(S) (A, bool), train bool) error {
	l.agent.Restart()
	state := l.agent.State()
	steps := 0
	reward := 0.0
	for !l.agent.IsTerminal(state) {
		action, ok := choose(state)
		if !ok {
			// a non-terminal state should always have a legal action
			break
		}
		l.agent.Perform(action)
		next := l.agent.State()
		r := l.agent.Reward(state, action, next)
		if train {
			if err := l.strategy.Update(state, action, next, r); err != nil {
				return err
			}
		} else {
			l.totalRewards += r
		}
		reward += r
		steps++
		state = next
	}

	l.totalScore += l.agent.Score(state)
	l.episodesCompleted++
	result := EpisodeResult{
		Episode: l.episodesCompleted,
		Steps:   steps,
		Score:   l.agent.Score(state),
		Reward:  reward,
		Epsilon: l.Epsilon,
	}
	if l.Logger != nil {
		l.Logger.Printf("episode %d: score=%g reward=%g steps=%d epsilon=%.4f",
			result.Episode, result.Score, result.Reward, result.Steps, result.Epsilon)
	}
	if l.Observer != nil {
		l.Observer(result)
	}
	return nil
}

func (l *Learner[S, A]) decayEpsilon() {
	l.Epsilon *= l.EpsilonDecay
	if l.Epsilon < l.MinEpsilon {
		l.Epsilon = l.MinEpsilon
	}
}

func (l *Learner[S, A]) TotalScore() float64    { return l.totalScore }
func (l *Learner[S, A]) TotalRewards() float64  { return l.totalRewards }
func (l *Learner[S, A]) EpisodesCompleted() int { return l.episodesCompleted }

// AverageScore is the mean score per completed episode, 0 before any.
func (l *Learner[S, A]) AverageScore() float64 {
	if l.episodesCompleted == 0 {
		return 0
	}
	return l.totalScore / float64(l.episodesCompleted)
}

// AverageRewards is the mean total reward per completed episode.
func (l *Learner[S, A]) AverageRewards() float64 {
	if l.episodesCompleted == 0 {
		return 0
	}
	return l.totalRewards / float64(l.episodesCompleted)
}

// ResetStats zeroes the score, reward and episode counters.
func (l *Learner[S, A]) ResetStats() {
	l.totalScore = 0
	l.totalRewards = 0
	l.episodesCompleted = 0
}

// pickBest returns the action with the largest value, choosing uniformly
// among ties, or among all actions when every value is NaN. actions and
// values must be non-empty and of equal length.
func pickBest[A any](actions []A, values []float64, rng *rand.Rand) A {
	max := floats.Max(values)
	best := make([]A, 0, len(actions))
	for i, v := range values {
		if v >= max {
			best = append(best, actions[i])
		}
	}
	switch len(best) {
	case 0:
		// every value is NaN
		return actions[rng.Intn(len(actions))]
	case 1:
		return best[0]
	}
	return best[rng.Intn(len(best))]
}

package entity

import (
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/memorygame-backend/internal/apperror"
)

const (
	PairCount = 8
	BoardSize = PairCount * 2
)

// ShuffleFunc has the signature of rand.Shuffle; tests swap it for a fixed order.
type ShuffleFunc func(n int, swap func(i, j int))

// DefaultShuffle is a uniform Fisher-Yates shuffle.
var DefaultShuffle ShuffleFunc = rand.Shuffle

type GameState struct {
	Cards        []int  `json:"cards"`
	Matched      []bool `json:"matched"`
	Moves        int    `json:"moves"`
	MatchedPairs int    `json:"matched_pairs"`
	GameWon      bool   `json:"game_won"`
}

type MoveResult struct {
	Match   bool
	Card1   int
	Card2   int
	Moves   int
	GameWon bool

	// Completed is set only on the move that matched the last pair.
	Completed bool
}

type Score struct {
	Moves        int
	MatchedPairs int
	GameWon      bool
}

// NewGameState - deals a fresh board of PairCount pairs in shuffled order.
func NewGameState(shuffle ShuffleFunc) *GameState {
	if shuffle == nil {
		shuffle = DefaultShuffle
	}

	cards := NewDeck()
	shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})

	return &GameState{
		Cards:   cards,
		Matched: make([]bool, BoardSize),
	}
}

// NewDeck - returns values 1..PairCount, each twice, in sorted order.
func NewDeck() []int {
	cards := make([]int, 0, BoardSize)
	for value := 1; value <= PairCount; value++ {
		cards = append(cards, value, value)
	}

	return cards
}

// Flip - reveals the cards at pos1 and pos2 and records the move.
func (that *GameState) Flip(pos1, pos2 int) (*MoveResult, error) {
	if !that.validPosition(pos1) || !that.validPosition(pos2) || pos1 == pos2 {
		return nil, fmt.Errorf("%w: %d, %d", apperror.ErrInvalidPosition, pos1, pos2)
	}

	card1, card2 := that.Cards[pos1], that.Cards[pos2]
	match := card1 == card2
	wonBefore := that.GameWon

	that.Moves++

	// a pair counts once, re-flipping it later still reveals a match
	if match && !that.Matched[pos1] {
		that.Matched[pos1] = true
		that.Matched[pos2] = true
		that.MatchedPairs++
	}

	if that.MatchedPairs == PairCount {
		that.GameWon = true
	}

	return &MoveResult{
		Match:   match,
		Card1:   card1,
		Card2:   card2,
		Moves:   that.Moves,
		GameWon: that.GameWon,

		Completed: that.GameWon && !wonBefore,
	}, nil
}

func (that *GameState) Score() Score {
	if that == nil {
		return Score{}
	}

	return Score{
		Moves:        that.Moves,
		MatchedPairs: that.MatchedPairs,
		GameWon:      that.GameWon,
	}
}

func (that *GameState) validPosition(pos int) bool {
	return pos >= 0 && pos < len(that.Cards)
}

// Validate - checks the invariants of a state loaded from storage.
func (that *GameState) Validate() error {
	if len(that.Cards) != BoardSize {
		return fmt.Errorf("%w: %d cards", apperror.ErrCorruptedState, len(that.Cards))
	}

	if len(that.Matched) != BoardSize {
		return fmt.Errorf("%w: %d matched flags", apperror.ErrCorruptedState, len(that.Matched))
	}

	var counts [PairCount + 1]int
	for _, card := range that.Cards {
		if card < 1 || card > PairCount {
			return fmt.Errorf("%w: card value %d", apperror.ErrCorruptedState, card)
		}
		counts[card]++
	}

	for value := 1; value <= PairCount; value++ {
		if counts[value] != 2 {
			return fmt.Errorf("%w: value %d appears %d times", apperror.ErrCorruptedState, value, counts[value])
		}
	}

	flagged := 0
	for i, matched := range that.Matched {
		if matched {
			flagged++
			if !that.hasMatchedTwin(i) {
				return fmt.Errorf("%w: index %d flagged without its pair", apperror.ErrCorruptedState, i)
			}
		}
	}

	switch {
	case that.Moves < 0:
		return fmt.Errorf("%w: negative moves %d", apperror.ErrCorruptedState, that.Moves)
	case that.MatchedPairs < 0 || that.MatchedPairs > PairCount:
		return fmt.Errorf("%w: matched pairs %d", apperror.ErrCorruptedState, that.MatchedPairs)
	case flagged != that.MatchedPairs*2:
		return fmt.Errorf("%w: %d flagged cards for %d pairs", apperror.ErrCorruptedState, flagged, that.MatchedPairs)
	case that.GameWon != (that.MatchedPairs == PairCount):
		return fmt.Errorf("%w: game won %t with %d pairs", apperror.ErrCorruptedState, that.GameWon, that.MatchedPairs)
	}

	return nil
}

func (that *GameState) hasMatchedTwin(index int) bool {
	for i, card := range that.Cards {
		if i != index && card == that.Cards[index] {
			return that.Matched[i]
		}
	}

	return false
}

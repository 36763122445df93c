package game

import (
	"reflect"
	"testing"

	"brainplay/internal/domain"
)

func TestLeaderboardRanks(t *testing.T) {
	cases := []struct {
		name   string
		scores []int
		want   []int
	}{
		{"empty", []int{}, []int{}},
		{"single", []int{42}, []int{1}},
		{"unsorted with tie", []int{100, 200, 150, 200, 50}, []int{4, 1, 3, 1, 5}},
		{"three-way tie skips ranks", []int{300, 250, 250, 250, 200, 200, 100}, []int{1, 2, 2, 2, 5, 5, 7}},
		{"all tied", []int{10, 10, 10}, []int{1, 1, 1}},
		{"negative scores", []int{-20, 0, -20}, []int{2, 1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := LeaderboardRanks(tc.scores)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("LeaderboardRanks(%v) = %v, want %v", tc.scores, got, tc.want)
			}
		})
	}
}

func TestLeaderboardRanksDoNotMutateInput(t *testing.T) {
	scores := []int{100, 200, 150}
	LeaderboardRanks(scores)
	if !reflect.DeepEqual(scores, []int{100, 200, 150}) {
		t.Fatalf("input mutated: %v", scores)
	}
}

func TestBuildLeaderboard(t *testing.T) {
	players := []domain.Player{
		{ID: "p1", Nickname: "ada", Score: 130, AnsweredQuestions: []domain.PlayerAnswer{
			{IsCorrect: true}, {IsCorrect: false},
		}},
		{ID: "p2", Nickname: "bob", Score: 280, AnsweredQuestions: []domain.PlayerAnswer{
			{IsCorrect: true}, {IsCorrect: true},
		}},
		{ID: "p3", Nickname: "cat", Score: 280, AnsweredQuestions: []domain.PlayerAnswer{
			{IsCorrect: true}, {IsCorrect: true},
		}},
		{ID: "p4", Nickname: "dan", Score: 0},
	}

	entries := BuildLeaderboard(players)
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if entries[0].Score != 280 || entries[1].Score != 280 {
		t.Fatalf("expected tied leaders first: %+v", entries)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 1 {
		t.Fatalf("tied leaders must share rank 1: %d, %d", entries[0].Rank, entries[1].Rank)
	}
	if entries[2].Rank != 3 || entries[2].PlayerID != "p1" {
		t.Fatalf("rank after a tie must skip: %+v", entries[2])
	}
	if entries[2].Accuracy != 50 {
		t.Fatalf("accuracy = %v, want 50", entries[2].Accuracy)
	}
	if entries[3].Accuracy != 0 || entries[3].TotalQuestions != 0 {
		t.Fatalf("player with no answers: %+v", entries[3])
	}
}

package http

import "brainplay/internal/domain"

// hostQuizView is the full quiz record, answers included. Only the host sees it.
func hostQuizView(quiz domain.Quiz) domain.Quiz {
	return quiz
}

// playerQuizView strips the correct answers and the admin id before the quiz
// leaves the server for a player.
func playerQuizView(quiz domain.Quiz) domain.Quiz {
	view := quiz
	view.AdminID = ""
	view.Questions = make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.CorrectAnswer = domain.AnswerNone
		view.Questions[i] = q
	}
	return view
}

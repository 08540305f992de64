package cli

import (
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

// demoQuestionSets backs local runs with no generator or database.
func demoQuestionSets() map[string][]domain.Question {
	general := []domain.Question{
		demoQuestion("What is 2 + 2?", "3", "4", "5", "22", "B"),
		demoQuestion("Which planet is known as the Red Planet?", "Venus", "Jupiter", "Mars", "Mercury", "C"),
		demoQuestion("What is the chemical symbol for water?", "H2O", "O2", "CO2", "NaCl", "A"),
		demoQuestion("How many continents are there?", "5", "6", "8", "7", "D"),
		demoQuestion("Which gas do plants absorb?", "Oxygen", "Carbon dioxide", "Nitrogen", "Helium", "B"),
		demoQuestion("What is the largest ocean?", "Pacific", "Atlantic", "Indian", "Arctic", "A"),
		demoQuestion("How many sides does a hexagon have?", "5", "8", "6", "7", "C"),
		demoQuestion("What is the boiling point of water at sea level in Celsius?", "90", "110", "120", "100", "D"),
		demoQuestion("Which language is primarily spoken in Brazil?", "Spanish", "Portuguese", "French", "English", "B"),
		demoQuestion("What is 9 x 7?", "63", "56", "72", "81", "A"),
	}
	return map[string][]domain.Question{memory.AnyTopic: general}
}

func demoQuestion(text, a, b, c, d, answer string) domain.Question {
	return domain.Question{
		Text:    text,
		Options: map[string]string{"A": a, "B": b, "C": c, "D": d},
		Answer:  answer,
	}
}

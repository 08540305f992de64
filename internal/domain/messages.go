package domain

// Outbound message types. Every message is a JSON object tagged by "type".
const (
	TypeJoined       = "joined"
	TypeLeft         = "left"
	TypeQuestions    = "questions"
	TypeStartQuiz    = "start-quiz"
	TypeQuestion     = "question"
	TypeTimer        = "timer"
	TypeResponse     = "response"
	TypeLeaderboards = "leaderboards"
	TypeResetQuiz    = "reset-quiz"
	TypeQuizDetails  = "current-quiz-details"
	TypeError        = "error"
)

// Inbound message types.
const (
	InJoinRoom          = "join-room"
	InGenerateQuestions = "generate-questions"
	InStartQuiz         = "start-quiz"
	InAddResponse       = "add-response"
	InResetQuiz         = "reset-quiz"
)

// Failure is the private, type-tagged envelope used for every rejected request.
type Failure struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewFailure builds a Failure for messageType from err.
func NewFailure(messageType string, err error) Failure {
	return Failure{Type: messageType, Success: false, Message: PublicMessage(err)}
}

type JoinedMessage struct {
	Type    string   `json:"type"`
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Users   []Member `json:"users,omitempty"`
}

type LeftMessage struct {
	Type    string   `json:"type"`
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Users   []Member `json:"users"`
}

type QuestionsMessage struct {
	Type               string `json:"type"`
	Success            bool   `json:"success"`
	Message            string `json:"message"`
	QuestionsAvailable bool   `json:"questionsAvailable"`
}

type QuestionMessage struct {
	Type            string            `json:"type"`
	TimeLeft        int               `json:"time_left"`
	QuestionNumber  int               `json:"question_number"`
	QuestionText    string            `json:"question_text"`
	QuestionOptions map[string]string `json:"question_options"`
}

type TimerMessage struct {
	Type     string `json:"type"`
	TimeLeft int    `json:"time_left"`
}

type ResponseMessage struct {
	Type           string `json:"type"`
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	QuestionNumber int    `json:"question_number,omitempty"`
	CorrectAnswer  string `json:"correct_answer,omitempty"`
}

type LeaderboardMessage struct {
	Type    string     `json:"type"`
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Users   []Standing `json:"users"`
}

type ResetMessage struct {
	Type    string   `json:"type"`
	Success bool     `json:"success"`
	Users   []Member `json:"users"`
}

// QuizDetailsMessage resyncs a connection that (re)joins a running or finished quiz.
type QuizDetailsMessage struct {
	Type          string        `json:"type"`
	Success       bool          `json:"success"`
	State         string        `json:"state"`
	TimeLeft      *int          `json:"time_left,omitempty"`
	Question      *QuestionView `json:"question,omitempty"`
	HasResponded  *bool         `json:"has_responded,omitempty"`
	UserAnswer    string        `json:"user_answer,omitempty"`
	CorrectAnswer string        `json:"correct_answer,omitempty"`
	Users         []Standing    `json:"users,omitempty"`
}

package domain

import "errors"

var (
	// ErrUnauthenticated is returned when a request carries no valid identity.
	ErrUnauthenticated = errors.New("login required")
	// ErrRoomNotFound is returned for unknown or already deleted room codes.
	ErrRoomNotFound = errors.New("could not find the room, please join or create another room")
	// ErrRoomCreationExhausted means every candidate room code collided.
	ErrRoomCreationExhausted = errors.New("could not create a room")
	// ErrNotInRoom is returned when the sender is not bound to any room.
	ErrNotInRoom = errors.New("you are not in a room")
	// ErrAlreadyInAnotherRoom is returned when joining while bound to a different room.
	ErrAlreadyInAnotherRoom = errors.New("you are already in another room")
	// ErrAlreadyJoined is returned when the username is already a connected member.
	ErrAlreadyJoined = errors.New("you have already joined this room")
	// ErrQuizAlreadyStarted rejects brand-new participants once a quiz is running.
	ErrQuizAlreadyStarted = errors.New("cannot join room once the quiz has started, wait for it to restart or join another room")
	// ErrNotMember is returned when an operation names a user the room does not know.
	ErrNotMember = errors.New("you are not a member of this room")
	// ErrNotAdmin is returned when a non-admin tries an admin-only operation.
	ErrNotAdmin = errors.New("only the room admin can do this")
	// ErrInvalidTopic is returned for blank topics.
	ErrInvalidTopic = errors.New("topic cannot be empty")
	// ErrInvalidDifficulty is returned for unknown difficulty levels.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrGenerationFailed covers provider failures and malformed question sets.
	ErrGenerationFailed = errors.New("failed to generate questions, please try again")
	// ErrGenerationInProgress rejects a second generation request on the same connection.
	ErrGenerationInProgress = errors.New("questions are already being generated")
	// ErrAlreadyStarted is returned when starting a quiz that is not waiting.
	ErrAlreadyStarted = errors.New("the quiz has already begun")
	// ErrQuestionsNotReady is returned when starting without a loaded question set.
	ErrQuestionsNotReady = errors.New("questions have not been generated yet")
	// ErrNotInProgress rejects answers outside a running quiz.
	ErrNotInProgress = errors.New("not accepting answers now")
	// ErrDuplicateResponse rejects a second answer to the same question.
	ErrDuplicateResponse = errors.New("you have already responded to this question")
	// ErrInvalidQuestion is returned for question numbers outside the set.
	ErrInvalidQuestion = errors.New("invalid question number")
	// ErrNotFinished rejects a reset before results are shown.
	ErrNotFinished = errors.New("cannot reset the quiz before results")
	// ErrInvalidPayload is returned for malformed or incomplete client messages.
	ErrInvalidPayload = errors.New("invalid message payload")
)

var publicErrors = []error{
	ErrUnauthenticated,
	ErrRoomNotFound,
	ErrRoomCreationExhausted,
	ErrNotInRoom,
	ErrAlreadyInAnotherRoom,
	ErrAlreadyJoined,
	ErrQuizAlreadyStarted,
	ErrNotMember,
	ErrNotAdmin,
	ErrInvalidTopic,
	ErrInvalidDifficulty,
	ErrGenerationInProgress,
	ErrAlreadyStarted,
	ErrQuestionsNotReady,
	ErrNotInProgress,
	ErrDuplicateResponse,
	ErrInvalidQuestion,
	ErrNotFinished,
	ErrInvalidPayload,
}

// ProviderError carries a message the question generator meant for end users.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PublicMessage returns the text that may be shown to the client for err.
// Internal details of provider failures are never exposed.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	if errors.Is(err, ErrGenerationFailed) {
		return ErrGenerationFailed.Error()
	}
	for _, sentinel := range publicErrors {
		if errors.Is(err, sentinel) {
			return err.Error()
		}
	}
	return "something went wrong, please try again"
}

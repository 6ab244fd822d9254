package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bnema/taskdump/internal/domain"
	"github.com/bnema/taskdump/internal/logging"
	"github.com/bnema/taskdump/internal/parse"
	"github.com/bnema/taskdump/internal/ports"
)

const (
	DefaultSessionListLimit = 20
	maxTopicRunes           = 80
)

var errLedgerWrite = errors.New("ledger write failed after external create")

// Orchestrator composes parsing, classification, session storage and the
// conversation context into the user-facing operations.
type Orchestrator struct {
	sessions   ports.SessionRepository
	tracker    ports.TaskTracker
	classifier *Classifier
	contexts   *ConversationService
	ids        ports.IDGenerator
	clock      ports.Clock
	logger     *logging.Logger
}

func NewOrchestrator(
	sessions ports.SessionRepository,
	tracker ports.TaskTracker,
	classifier *Classifier,
	contexts *ConversationService,
	ids ports.IDGenerator,
	clock ports.Clock,
	logger *logging.Logger,
) *Orchestrator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if ids == nil {
		ids = ports.UUIDGenerator{}
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if classifier == nil {
		classifier = NewClassifier(nil, logger, 0)
	}

	return &Orchestrator{
		sessions:   sessions,
		tracker:    tracker,
		classifier: classifier,
		contexts:   contexts,
		ids:        ids,
		clock:      clock,
		logger:     logger,
	}
}

// Organize parses and classifies text into a new PENDING session. It does
// not look for an existing pending session: callers run at most one Organize
// per user at a time, and the most recently updated session wins lookups.
func (o *Orchestrator) Organize(ctx context.Context, cmd OrganizeCommand) (OrganizeResult, error) {
	if strings.TrimSpace(cmd.Text) == "" {
		return OrganizeResult{}, domain.ErrEmptyInput
	}

	tasks := parse.Preprocess(cmd.Text)
	if len(tasks) == 0 {
		return OrganizeResult{}, fmt.Errorf("%w: no task lines found", domain.ErrEmptyInput)
	}

	classification := o.classifier.Classify(ctx, tasks)

	now := o.clock.Now()
	session := domain.Session{
		ID:        domain.SessionID(o.ids.NewID()),
		UserID:    cmd.UserID,
		InputText: cmd.Text,
		Tasks:     classification.Tasks,
		Status:    domain.SessionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := session.Validate(); err != nil {
		return OrganizeResult{}, fmt.Errorf("validate session: %w", err)
	}
	if err := o.sessions.Create(ctx, session); err != nil {
		return OrganizeResult{}, fmt.Errorf("create session: %w", err)
	}

	o.logger.WithUser(string(cmd.UserID)).WithSession(string(session.ID)).
		Info("session created", "tasks", len(session.Tasks), "degraded", classification.Degraded)

	needs := needsEstimate(session.Tasks)
	intent := domain.IntentOrganize
	focus := session.Tasks[len(session.Tasks)-1]
	if len(needs) > 0 {
		intent = domain.IntentNeedEstimate
		focus = session.Tasks[needs[0]-1]
	}
	o.remember(ctx, cmd.UserID, cmd.ChannelID, domain.ContextPatch{
		LastIntent:         &intent,
		LastSessionID:      &session.ID,
		LastTaskTitle:      domain.StringPtr(focus.Title),
		LastCreatedTaskRef: domain.StringPtr(""),
		LastTopic:          domain.StringPtr(topicOf(cmd.Text)),
	})

	return OrganizeResult{
		Status:        session.Status,
		SessionID:     session.ID,
		Tasks:         domain.CloneTasks(session.Tasks),
		Degraded:      classification.Degraded,
		NeedsEstimate: needs,
	}, nil
}

// Accept pushes every not-yet-ledgered task of the session to the tracker,
// in order, creating subtasks only under a parent that exists. Per-task
// failures are reported in the result; an unreachable tracker stops the call.
func (o *Orchestrator) Accept(ctx context.Context, cmd AcceptCommand) (AcceptResult, error) {
	session, err := o.acceptTarget(ctx, cmd)
	if err != nil {
		return AcceptResult{}, err
	}

	result := AcceptResult{SessionID: session.ID}
	switch session.Status {
	case domain.SessionDiscarded:
		return result, fmt.Errorf("%w: session %s was discarded", domain.ErrInvalidTransition, session.ID)
	case domain.SessionPushed:
		result.Pushed = true
		return result, nil
	}

	entries, err := o.sessions.LedgerEntries(ctx, session.ID)
	if err != nil {
		return result, fmt.Errorf("load ledger entries: %w", err)
	}
	ledger := make(map[string]string, len(entries))
	for _, entry := range entries {
		ledger[entry.ContentHash] = entry.ExternalTaskRef
	}
	// Hashes first seen during this call belong to repeated tasks in the dump.
	earlier := make(map[string]struct{}, len(entries))
	for hash := range ledger {
		earlier[hash] = struct{}{}
	}

	logger := o.logger.WithUser(string(cmd.UserID)).WithSession(string(session.ID))

	// An ACCEPTED session left behind by an interrupted push resumes as is.
	if err := o.transition(ctx, &session, domain.SessionAccepted); err != nil {
		return result, err
	}
	logger.Info("session accepted", "tasks", session.TaskCount(), "already_created", len(ledger))

	var lastRef, lastTitle string
	// handle folds one push attempt into the result and reports whether the
	// loop must stop.
	handle := func(index int, title, hash, ref string, created bool, err error) (bool, error) {
		_, seenBefore := earlier[hash]
		switch {
		case err == nil && created:
			result.CreatedCount++
			lastRef, lastTitle = ref, title
			logger.Info("task created", "index", index, "title", title, "ref", ref)
			return false, nil
		case err == nil && seenBefore:
			result.Skipped++
			return false, nil
		case err == nil:
			result.Duplicates++
			logger.Warn("repeated task not created again", "index", index, "title", title, "ref", ref)
			return false, nil
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			logger.Warn("accept interrupted", "index", index, "error", err.Error())
			return true, fmt.Errorf("accept task %d: %w", index, err)
		case errors.Is(err, errLedgerWrite):
			logger.Error("ledger write failed", "index", index, "ref", ref, "error", err.Error())
			return true, fmt.Errorf("accept task %d: %w", index, err)
		case errors.Is(err, domain.ErrTrackerOffline):
			result.Offline = true
			logger.Error("task tracker offline", "index", index, "error", err.Error())
			return true, nil
		default:
			result.Failed = append(result.Failed, FailedTask{Index: index, Title: title, Reason: err.Error()})
			logger.Warn("task creation failed", "index", index, "title", title, "error", err.Error())
			return false, nil
		}
	}

	var fatal error
tasks:
	for i, task := range session.Tasks {
		index := i + 1
		if err := ctx.Err(); err != nil {
			fatal = fmt.Errorf("accept task %d: %w", index, err)
			break
		}
		hash := domain.ContentHash(session.ID, task.Title, task.DurationBucket)
		parentRef, created, err := o.pushOne(ctx, session.ID, hash, trackerInput(task, ""), ledger)
		stop, handleErr := handle(index, task.Title, hash, parentRef, created, err)
		if stop {
			fatal = handleErr
			break
		}
		if err != nil {
			continue
		}

		for _, subtask := range task.Subtasks {
			title := task.Title + " > " + subtask.Title
			hash := domain.SubtaskHash(session.ID, task.Title, subtask)
			ref, created, err := o.pushOne(ctx, session.ID, hash, trackerInput(subtask, parentRef), ledger)
			if stop, handleErr := handle(index, title, hash, ref, created, err); stop {
				fatal = handleErr
				break tasks
			}
		}
	}

	result.Remaining = unledgered(session, ledger)
	next := domain.SessionPending
	if result.Remaining == 0 && fatal == nil {
		next = domain.SessionPushed
	}
	// Recorded even when the caller has gone away.
	if err := o.transition(context.WithoutCancel(ctx), &session, next); err != nil {
		return result, errors.Join(fatal, err)
	}
	if fatal != nil {
		return result, fatal
	}
	result.Pushed = session.Status == domain.SessionPushed
	logger.Info("accept finished",
		"status", string(session.Status),
		"created", result.CreatedCount,
		"skipped", result.Skipped,
		"duplicates", result.Duplicates,
		"failed", len(result.Failed),
		"offline", result.Offline,
	)

	intent := domain.IntentAccept
	patch := domain.ContextPatch{LastIntent: &intent, LastSessionID: &session.ID}
	if lastRef != "" {
		patch.LastCreatedTaskRef = domain.StringPtr(lastRef)
		patch.LastTaskTitle = domain.StringPtr(lastTitle)
	}
	o.remember(ctx, cmd.UserID, cmd.ChannelID, patch)

	return result, nil
}

// Breakdown replaces the subtasks of one task in the last pending session
// with the model's suggestions. There is no fallback.
func (o *Orchestrator) Breakdown(ctx context.Context, cmd BreakdownCommand) (BreakdownResult, error) {
	session, err := o.lastPending(ctx, cmd.UserID)
	if err != nil {
		return BreakdownResult{}, err
	}

	index := cmd.TaskIndex
	if index == 0 {
		index, err = o.indexFromContext(ctx, cmd.UserID, cmd.ChannelID, session)
		if err != nil {
			return BreakdownResult{}, err
		}
	}

	parent, err := session.Task(index)
	if err != nil {
		return BreakdownResult{}, err
	}

	subtasks, err := o.classifier.Breakdown(ctx, parent)
	if err != nil {
		return BreakdownResult{}, err
	}

	tasks := domain.CloneTasks(session.Tasks)
	tasks[index-1].Subtasks = subtasks
	tasks[index-1].IsProjectCandidate = true
	if err := tasks[index-1].Validate(); err != nil {
		return BreakdownResult{}, fmt.Errorf("%w: %v", domain.ErrBreakdownFailed, err)
	}
	if err := o.sessions.UpdateTasks(ctx, session.ID, tasks, o.clock.Now()); err != nil {
		return BreakdownResult{}, fmt.Errorf("save breakdown: %w", err)
	}

	o.logger.WithUser(string(cmd.UserID)).WithSession(string(session.ID)).
		Info("task broken down", "index", index, "subtasks", len(subtasks))

	intent := domain.IntentBreakdown
	o.remember(ctx, cmd.UserID, cmd.ChannelID, domain.ContextPatch{
		LastIntent:    &intent,
		LastSessionID: &session.ID,
		LastTaskTitle: domain.StringPtr(parent.Title),
	})

	return BreakdownResult{
		SessionID: session.ID,
		Index:     index,
		Parent:    tasks[index-1],
		Subtasks:  domain.CloneTasks(subtasks),
	}, nil
}

// Resume returns the user's last pending session.
func (o *Orchestrator) Resume(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.Session, error) {
	session, err := o.lastPending(ctx, userID)
	if err != nil {
		return domain.Session{}, err
	}

	intent := domain.IntentResume
	o.remember(ctx, userID, channelID, domain.ContextPatch{LastIntent: &intent, LastSessionID: &session.ID})

	return session, nil
}

// Discard marks the user's last pending session DISCARDED. Nothing is sent
// to the tracker.
func (o *Orchestrator) Discard(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.Session, error) {
	session, err := o.lastPending(ctx, userID)
	if err != nil {
		return domain.Session{}, err
	}

	if err := o.transition(ctx, &session, domain.SessionDiscarded); err != nil {
		return domain.Session{}, err
	}
	o.logger.WithUser(string(userID)).WithSession(string(session.ID)).Info("session discarded")

	intent := domain.IntentDiscard
	o.remember(ctx, userID, channelID, domain.ContextPatch{LastIntent: &intent, LastSessionID: &session.ID})

	return session, nil
}

// CorrectLastTaskTime applies a new duration to the task the conversation
// last referred to. A task already in the tracker is relabeled there; a
// staged task is rewritten in its pending session.
func (o *Orchestrator) CorrectLastTaskTime(ctx context.Context, cmd CorrectTimeCommand) (CorrectTimeResult, error) {
	estimate := parse.ParseDuration(cmd.Text)
	if estimate.Minutes == nil {
		return CorrectTimeResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidDuration, strings.TrimSpace(cmd.Text))
	}
	minutes := *estimate.Minutes

	conversation, err := o.contexts.Get(ctx, cmd.UserID, cmd.ChannelID)
	if err != nil {
		if errors.Is(err, domain.ErrContextNotFound) {
			return CorrectTimeResult{}, domain.ErrNothingToCorrect
		}
		return CorrectTimeResult{}, err
	}
	if strings.TrimSpace(conversation.LastTaskTitle) == "" {
		return CorrectTimeResult{}, domain.ErrNothingToCorrect
	}

	result := CorrectTimeResult{
		Title:     conversation.LastTaskTitle,
		Minutes:   minutes,
		Bucket:    domain.BucketForMinutes(minutes),
		SessionID: conversation.LastSessionID,
	}

	if ref := conversation.LastCreatedTaskRef; ref != "" {
		label := result.Bucket.Label()
		if _, err := o.tracker.UpdateTask(ctx, ref, domain.TrackerTaskUpdate{DurationLabel: &label}); err != nil {
			return CorrectTimeResult{}, fmt.Errorf("update tracker task: %w", err)
		}
		result.TrackerRef = ref
	} else if err := o.correctStagedTask(ctx, conversation, minutes, estimate.Matched); err != nil {
		return CorrectTimeResult{}, err
	}

	o.logger.WithUser(string(cmd.UserID)).
		Info("task time corrected", "title", result.Title, "minutes", minutes, "tracker_ref", result.TrackerRef)

	intent := domain.IntentCorrectTime
	o.remember(ctx, cmd.UserID, cmd.ChannelID, domain.ContextPatch{LastIntent: &intent})

	return result, nil
}

// Context returns the live conversation context or domain.ErrContextNotFound.
func (o *Orchestrator) Context(ctx context.Context, userID domain.UserID, channelID domain.ChannelID) (domain.ConversationContext, error) {
	return o.contexts.Get(ctx, userID, channelID)
}

func (o *Orchestrator) ListSessions(ctx context.Context, userID domain.UserID, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = DefaultSessionListLimit
	}

	sessions, err := o.sessions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (o *Orchestrator) correctStagedTask(ctx context.Context, conversation domain.ConversationContext, minutes int, matched string) error {
	if conversation.LastSessionID == "" {
		return domain.ErrNothingToCorrect
	}

	session, err := o.sessions.GetByID(ctx, conversation.LastSessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrNothingToCorrect
		}
		return fmt.Errorf("get session by id: %w", err)
	}
	if session.Status != domain.SessionPending {
		return fmt.Errorf("%w: session %s is %s", domain.ErrNothingToCorrect, session.ID, session.Status)
	}

	tasks := domain.CloneTasks(session.Tasks)
	if !retime(tasks, conversation.LastTaskTitle, minutes, matched) {
		return fmt.Errorf("%w: %q is no longer in the session", domain.ErrNothingToCorrect, conversation.LastTaskTitle)
	}

	if err := o.sessions.UpdateTasks(ctx, session.ID, tasks, o.clock.Now()); err != nil {
		return fmt.Errorf("save corrected task: %w", err)
	}
	return nil
}

func retime(tasks []domain.ParsedTask, title string, minutes int, matched string) bool {
	for i := range tasks {
		if tasks[i].Title == title {
			tasks[i] = tasks[i].WithDuration(minutes)
			tasks[i].MatchedExpression = matched
			return true
		}
	}
	for i := range tasks {
		for j := range tasks[i].Subtasks {
			if tasks[i].Subtasks[j].Title == title {
				tasks[i].Subtasks[j] = tasks[i].Subtasks[j].WithDuration(minutes)
				tasks[i].Subtasks[j].IsProjectCandidate = false
				tasks[i].Subtasks[j].MatchedExpression = matched
				return true
			}
		}
	}
	return false
}

func (o *Orchestrator) acceptTarget(ctx context.Context, cmd AcceptCommand) (domain.Session, error) {
	if cmd.SessionID == "" {
		return o.lastPending(ctx, cmd.UserID)
	}

	session, err := o.sessions.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session by id: %w", err)
	}
	if session.UserID != cmd.UserID {
		return domain.Session{}, fmt.Errorf("get session by id: %w", domain.ErrSessionNotFound)
	}
	return session, nil
}

func (o *Orchestrator) lastPending(ctx context.Context, userID domain.UserID) (domain.Session, error) {
	session, err := o.sessions.GetLastPending(ctx, userID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get last pending session: %w", err)
	}
	return session, nil
}

func (o *Orchestrator) indexFromContext(ctx context.Context, userID domain.UserID, channelID domain.ChannelID, session domain.Session) (int, error) {
	conversation, err := o.contexts.Get(ctx, userID, channelID)
	if err != nil {
		if errors.Is(err, domain.ErrContextNotFound) {
			return 0, fmt.Errorf("%w: no task in the current conversation", domain.ErrTaskNotFound)
		}
		return 0, err
	}
	if conversation.LastSessionID != session.ID {
		return 0, fmt.Errorf("%w: no task in the current conversation", domain.ErrTaskNotFound)
	}

	for i, task := range session.Tasks {
		if task.Title == conversation.LastTaskTitle {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrTaskNotFound, conversation.LastTaskTitle)
}

func (o *Orchestrator) pushOne(ctx context.Context, sessionID domain.SessionID, hash string, input domain.TrackerTaskInput, ledger map[string]string) (string, bool, error) {
	if ref, ok := ledger[hash]; ok {
		return ref, false, nil
	}

	created, err := o.tracker.CreateTask(ctx, input)
	if err != nil {
		return "", false, err
	}

	entry := domain.LedgerEntry{
		SessionID:       sessionID,
		ContentHash:     hash,
		ExternalTaskRef: created.Ref,
		CreatedAt:       o.clock.Now(),
	}
	// The task exists remotely now, so its ref is kept past cancellation.
	if err := o.sessions.RecordCreated(context.WithoutCancel(ctx), entry); err != nil {
		return created.Ref, true, fmt.Errorf("%w: %w", errLedgerWrite, err)
	}
	ledger[hash] = created.Ref

	return created.Ref, true, nil
}

func (o *Orchestrator) transition(ctx context.Context, session *domain.Session, to domain.SessionStatus) error {
	if session.Status == to {
		return nil
	}
	if !session.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, session.Status, to)
	}

	now := o.clock.Now()
	if err := o.sessions.UpdateStatus(ctx, session.ID, to, now); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	session.Status = to
	session.UpdatedAt = now

	return nil
}

// remember updates the conversation context. Failures are logged only: the
// context is a convenience for follow-ups, not part of the operation.
func (o *Orchestrator) remember(ctx context.Context, userID domain.UserID, channelID domain.ChannelID, patch domain.ContextPatch) {
	if o.contexts == nil {
		return
	}
	if _, err := o.contexts.Update(ctx, userID, channelID, patch); err != nil {
		o.logger.WithUser(string(userID)).Warn("update conversation context", "error", err.Error())
	}
}

func trackerInput(task domain.ParsedTask, parentRef string) domain.TrackerTaskInput {
	return domain.TrackerTaskInput{
		Content:       task.Title,
		DurationLabel: task.DurationBucket.Label(),
		ParentRef:     parentRef,
		Priority:      task.Priority,
	}
}

func unledgered(session domain.Session, ledger map[string]string) int {
	missing := 0
	for _, task := range session.Tasks {
		if _, ok := ledger[domain.ContentHash(session.ID, task.Title, task.DurationBucket)]; !ok {
			missing++
		}
		for _, subtask := range task.Subtasks {
			if _, ok := ledger[domain.SubtaskHash(session.ID, task.Title, subtask)]; !ok {
				missing++
			}
		}
	}
	return missing
}

func needsEstimate(tasks []domain.ParsedTask) []int {
	var indexes []int
	for i, task := range tasks {
		if task.NeedsEstimate() {
			indexes = append(indexes, i+1)
		}
	}
	return indexes
}

func topicOf(text string) string {
	topic := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(topic) <= maxTopicRunes {
		return topic
	}
	runes := []rune(topic)
	return string(runes[:maxTopicRunes])
}

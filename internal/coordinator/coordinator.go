package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

// End reasons set by the coordinator itself
const (
	ReasonHostLeft = "host-left"
	ReasonEnded    = "ended"
)

const defaultExecutionTimeout = 2 * time.Minute

// Options configure a Coordinator
type Options struct {
	Publisher        Publisher
	Executor         interfaces.Executor // nil disables run-code
	Forwarder        Forwarder           // nil keeps analytics in memory only
	MaxDocumentBytes int                 // 0 means unlimited
	ExecutionTimeout time.Duration       // bounds one sandbox call; 0 means the default
	Clock            func() time.Time

	// OnEnded runs once, outside the session lock, after the session
	// transitions to Ended
	OnEnded func(session types.Session)
}

// Coordinator serializes every mutation of one session. All owned
// components are guarded by a single mutex; events are handed to the
// outbox while the lock is held so delivery order matches apply order.
type Coordinator struct {
	mu           sync.Mutex
	session      types.Session
	password     string
	doc          DocumentStore
	roster       *Roster
	interactions *InteractionManager
	analytics    *Aggregator
	idleSince    time.Time

	opts   Options
	out    *outbox
	tracer trace.Tracer

	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a coordinator for session in the Created state
func New(session types.Session, password string, opts Options) *Coordinator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ExecutionTimeout <= 0 {
		opts.ExecutionTimeout = defaultExecutionTimeout
	}
	session.Status = types.StatusCreated

	return &Coordinator{
		session:      session,
		password:     password,
		roster:       NewRoster(),
		interactions: NewInteractionManager(),
		analytics:    NewAggregator(session.ID, opts.Forwarder),
		idleSince:    opts.Clock(),
		opts:         opts,
		out:          newOutbox(session.ID, opts.Publisher),
		tracer:       otel.Tracer("liveclass/coordinator"),
	}
}

// Start launches event delivery
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		go c.out.run()
	})
}

// Close stops delivery after queued events are published. Executions
// already handed to the sandbox run to completion; their results are
// dropped. It is safe to call more than once.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.Start()
		c.out.close()
		<-c.out.done
	})
}

// ID returns the session id
func (c *Coordinator) ID() string {
	return c.session.ID
}

// Apply runs one command atomically. On error nothing is mutated and no
// event is emitted; the error is for the caller alone.
func (c *Coordinator) Apply(ctx context.Context, cmd Command) ([]Event, error) {
	if cmd == nil {
		return nil, ErrUnknownCommand
	}
	_, span := c.tracer.Start(ctx, "coordinator.apply", trace.WithAttributes(
		attribute.String("session.id", c.session.ID),
		attribute.String("command", cmd.command()),
	))
	defer span.End()

	c.mu.Lock()
	wasEnded := c.session.Status == types.StatusEnded
	events, err := c.apply(cmd)
	if err == nil && len(events) > 0 {
		c.out.push(events)
	}
	endedNow := !wasEnded && c.session.Status == types.StatusEnded
	session := c.sessionCopy()
	c.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("events", len(events)))

	if endedNow {
		log.Printf("Session ended: id=%s reason=%s", session.ID, session.EndReason)
		if c.opts.OnEnded != nil {
			c.opts.OnEnded(session)
		}
	}
	return events, nil
}

func (c *Coordinator) apply(cmd Command) ([]Event, error) {
	if c.session.Status == types.StatusEnded {
		return nil, ErrSessionEnded
	}
	now := c.opts.Clock()

	switch cmd := cmd.(type) {
	case Join:
		return c.join(cmd, now)
	case Leave:
		return c.leave(cmd, now)
	case UpdateCode:
		return c.updateCode(cmd, now)
	case RunCode:
		return c.runCode(cmd, now)
	case executionCompleted:
		return []Event{toAll(types.EventCodeExecutionResult, cmd.result)}, nil
	case SendMessage:
		return c.sendMessage(cmd.UserID, cmd.Body, types.MessageKindChat, now)
	case Broadcast:
		return c.sendMessage(cmd.UserID, cmd.Body, types.MessageKindBroadcast, now)
	case RaiseHand:
		return c.raiseHand(cmd, now)
	case LowerHand:
		return c.lowerHand(cmd)
	case CreatePoll:
		return c.createPoll(cmd, now)
	case RespondPoll:
		return c.respondPoll(cmd, now)
	case EndPoll:
		return c.endPoll(cmd, now)
	case CreateBreakoutRooms:
		return c.createBreakoutRooms(cmd)
	case UpdateSettings:
		return c.updateSettings(cmd)
	case ToggleRecording:
		return c.setRecording(cmd.UserID, !c.interactions.Recording().IsRecording, now)
	case SetRecording:
		return c.setRecording(cmd.UserID, cmd.On, now)
	case End:
		if !cmd.system {
			if _, err := c.instructor(cmd.UserID); err != nil {
				return nil, err
			}
		}
		reason := cmd.Reason
		if reason == "" {
			reason = ReasonEnded
		}
		return c.end(reason, now), nil
	case ReapIfIdle:
		if c.roster.Len() > 0 || now.Sub(c.idleSince) < cmd.IdleFor {
			return nil, ErrNotIdle
		}
		return c.end(cmd.Reason, now), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (c *Coordinator) member(userID string) (types.Participant, error) {
	p, ok := c.roster.Get(userID)
	if !ok {
		return types.Participant{}, ErrNotParticipant
	}
	return p, nil
}

func (c *Coordinator) instructor(userID string) (types.Participant, error) {
	p, err := c.member(userID)
	if err != nil {
		return p, err
	}
	if p.Role != types.RoleInstructor {
		return p, ErrInstructorOnly
	}
	return p, nil
}

func (c *Coordinator) record(category types.AnalyticsCategory, userID, action string, now time.Time) Event {
	ev := c.analytics.Record(category, userID, action, now)
	return toInstructors(types.EventAnalyticsUpdate, ev)
}

func (c *Coordinator) join(cmd Join, now time.Time) ([]Event, error) {
	if !types.IsValidUserID(cmd.UserID) {
		return nil, ErrInvalidUserID
	}
	if !types.IsValidRole(cmd.Role) {
		return nil, ErrInvalidRole
	}
	if c.password != "" && cmd.Password != c.password {
		return nil, ErrPasswordMismatch
	}
	if err := c.roster.CanAdd(cmd.UserID, c.session.Settings.MaxParticipants); err != nil {
		return nil, err
	}

	p := types.Participant{
		UserID:      cmd.UserID,
		DisplayName: cmd.DisplayName,
		Role:        cmd.Role,
		JoinedAt:    now,
	}
	if prev, ok := c.roster.Get(cmd.UserID); ok {
		// rejoin keeps the original slot
		p.JoinedAt = prev.JoinedAt
		p.HandRaised = prev.HandRaised
	}
	if p.DisplayName == "" {
		p.DisplayName = p.UserID
	}
	if _, err := c.roster.Add(p, c.session.Settings.MaxParticipants); err != nil {
		return nil, err
	}
	if c.session.Status == types.StatusCreated {
		c.session.Status = types.StatusActive
	}

	return []Event{
		toAll(types.EventParticipantJoined, p),
		toUser(p.UserID, types.EventSessionUpdated, JoinedPayload{Participant: p, State: c.snapshot()}),
		c.record(types.CategoryParticipation, p.UserID, "joined", now),
	}, nil
}

func (c *Coordinator) leave(cmd Leave, now time.Time) ([]Event, error) {
	p, ok := c.roster.Get(cmd.UserID)
	if !ok {
		return nil, ErrParticipantNotFound
	}

	c.roster.Remove(p.UserID)
	events := []Event{toAll(types.EventParticipantLeft, p)}
	if c.interactions.LowerHand(p.UserID) {
		events = append(events, toAll(types.EventHandLowered, types.HandPayload{
			UserID: p.UserID,
			Queue:  c.interactions.HandQueue(),
		}))
	}
	events = append(events, c.record(types.CategoryParticipation, p.UserID, "left", now))
	if c.roster.Len() == 0 {
		c.idleSince = now
	}

	if p.UserID == c.session.HostID {
		events = append(events, c.end(ReasonHostLeft, now)...)
	}
	return events, nil
}

func (c *Coordinator) updateCode(cmd UpdateCode, now time.Time) ([]Event, error) {
	p, err := c.member(cmd.UserID)
	if err != nil {
		return nil, err
	}
	if p.Role != types.RoleInstructor && !c.session.Settings.AllowStudentCode {
		return nil, ErrStudentCodeDisabled
	}
	if limit := c.opts.MaxDocumentBytes; limit > 0 && len(cmd.Code) > limit {
		return nil, ErrDocumentTooLarge
	}
	if version, ok := c.doc.Applied(p.UserID, cmd.RequestID); ok {
		log.Printf("Ignoring retransmitted code update: session=%s user=%s request=%s version=%d", c.session.ID, p.UserID, cmd.RequestID, version)
		return nil, nil
	}

	doc := types.SharedDocument{
		Code:      cmd.Code,
		Language:  cmd.Language,
		UpdatedBy: p.UserID,
		Version:   c.doc.NextVersion(),
		UpdatedAt: now,
	}
	if doc.Language == "" {
		doc.Language = c.doc.Current().Language
	}
	c.doc.Apply(doc)
	c.doc.Remember(p.UserID, cmd.RequestID, doc.Version)

	var events []Event
	if c.session.Settings.CodeVisibility == types.CodeVisibilityInstructors {
		events = append(events, toInstructors(types.EventCodeUpdated, doc))
		if p.Role != types.RoleInstructor {
			events = append(events, toUser(p.UserID, types.EventCodeUpdated, doc))
		}
	} else {
		events = append(events, toAll(types.EventCodeUpdated, doc))
	}
	return append(events, c.record(types.CategoryCodeActivity, p.UserID, "code_updated", now)), nil
}

func (c *Coordinator) runCode(cmd RunCode, now time.Time) ([]Event, error) {
	p, err := c.member(cmd.UserID)
	if err != nil {
		return nil, err
	}
	if c.opts.Executor == nil {
		return nil, ErrExecutorUnavailable
	}

	doc := c.doc.Current()
	req := types.ExecutionRequest{
		SessionID:   c.session.ID,
		RequestedBy: p.UserID,
		Code:        doc.Code,
		Language:    doc.Language,
		Version:     doc.Version,
	}
	go c.execute(req)

	return []Event{c.record(types.CategoryCodeActivity, p.UserID, "code_run", now)}, nil
}

// execute calls the sandbox off the session lock and feeds the result
// back in as a command. The call does not depend on the session's
// lifetime; results arriving after the session ended are dropped.
func (c *Coordinator) execute(req types.ExecutionRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ExecutionTimeout)
	defer cancel()

	result := types.ExecutionResult{RequestedBy: req.RequestedBy, Version: req.Version}
	raw, err := c.opts.Executor.Execute(ctx, req)
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Result = raw
	}
	result.CompletedAt = c.opts.Clock()

	if _, err := c.Apply(context.Background(), executionCompleted{result: result}); err != nil {
		if errors.Is(err, ErrSessionEnded) {
			log.Printf("Dropping execution result for ended session %s", req.SessionID)
			return
		}
		log.Printf("Failed to deliver execution result: session=%s error=%v", req.SessionID, err)
	}
}

func (c *Coordinator) sendMessage(userID, body string, kind types.MessageKind, now time.Time) ([]Event, error) {
	p, err := c.member(userID)
	if err != nil {
		return nil, err
	}

	name := types.EventNewMessage
	action := "chat_message"
	if kind == types.MessageKindBroadcast {
		if p.UserID != c.session.HostID {
			return nil, ErrHostOnly
		}
		name = types.EventBroadcastMessage
		action = "broadcast"
	} else if !c.session.Settings.AllowChat && p.Role != types.RoleInstructor {
		return nil, ErrChatDisabled
	}
	if err := types.ValidateMessageBody(body); err != nil {
		return nil, err
	}

	msg := types.Message{
		ID:        ulid.Make().String(),
		SenderID:  p.UserID,
		Kind:      kind,
		Body:      body,
		Timestamp: now,
	}
	return []Event{
		toAll(name, msg),
		c.record(types.CategoryEngagement, p.UserID, action, now),
	}, nil
}

func (c *Coordinator) raiseHand(cmd RaiseHand, now time.Time) ([]Event, error) {
	p, err := c.member(cmd.UserID)
	if err != nil {
		return nil, err
	}
	if p.Role != types.RoleStudent {
		return nil, ErrStudentsOnly
	}
	if !c.session.Settings.AllowHandRaise {
		return nil, ErrHandRaiseDisabled
	}

	if !c.interactions.RaiseHand(p.UserID) {
		return nil, nil
	}
	c.roster.SetHandRaised(p.UserID, true)
	return []Event{
		toAll(types.EventHandRaised, types.HandPayload{UserID: p.UserID, Queue: c.interactions.HandQueue()}),
		c.record(types.CategoryEngagement, p.UserID, "hand_raised", now),
	}, nil
}

func (c *Coordinator) lowerHand(cmd LowerHand) ([]Event, error) {
	p, err := c.member(cmd.UserID)
	if err != nil {
		return nil, err
	}

	target := p.UserID
	if cmd.TargetID != "" && cmd.TargetID != p.UserID {
		// acknowledging someone else's hand
		if p.Role != types.RoleInstructor {
			return nil, ErrInstructorOnly
		}
		if !c.roster.Has(cmd.TargetID) {
			return nil, ErrParticipantNotFound
		}
		target = cmd.TargetID
	} else {
		if p.Role != types.RoleStudent {
			return nil, ErrStudentsOnly
		}
		if !c.session.Settings.AllowHandRaise {
			return nil, ErrHandRaiseDisabled
		}
	}

	if !c.interactions.LowerHand(target) {
		return nil, nil
	}
	c.roster.SetHandRaised(target, false)
	return []Event{
		toAll(types.EventHandLowered, types.HandPayload{UserID: target, Queue: c.interactions.HandQueue()}),
	}, nil
}

func (c *Coordinator) createPoll(cmd CreatePoll, now time.Time) ([]Event, error) {
	p, err := c.instructor(cmd.UserID)
	if err != nil {
		return nil, err
	}
	poll, err := c.interactions.CreatePoll(p.UserID, cmd.Question, cmd.Options, now)
	if err != nil {
		return nil, err
	}
	return []Event{toAll(types.EventPollCreated, poll)}, nil
}

func (c *Coordinator) respondPoll(cmd RespondPoll, now time.Time) ([]Event, error) {
	p, err := c.member(cmd.UserID)
	if err != nil {
		return nil, err
	}
	poll, err := c.interactions.Respond(cmd.PollID, p.UserID, cmd.Answer)
	if err != nil {
		return nil, err
	}
	// tallies go to instructors, students only see their own ack
	return []Event{
		toInstructors(types.EventPollResponse, poll),
		toUser(p.UserID, types.EventPollResponse, map[string]string{"poll_id": poll.ID, "answer": cmd.Answer}),
		c.record(types.CategoryEngagement, p.UserID, "poll_response", now),
	}, nil
}

func (c *Coordinator) endPoll(cmd EndPoll, now time.Time) ([]Event, error) {
	if _, err := c.instructor(cmd.UserID); err != nil {
		return nil, err
	}
	poll, err := c.interactions.EndPoll(cmd.PollID, now)
	if err != nil {
		return nil, err
	}
	return []Event{toAll(types.EventPollEnded, poll)}, nil
}

func (c *Coordinator) createBreakoutRooms(cmd CreateBreakoutRooms) ([]Event, error) {
	if _, err := c.instructor(cmd.UserID); err != nil {
		return nil, err
	}
	if err := ValidateAssignment(cmd.Assignment, c.roster.Has); err != nil {
		return nil, err
	}
	rooms := c.interactions.ReplaceRooms(cmd.Assignment)
	return []Event{toAll(types.EventBreakoutRoomsCreated, rooms)}, nil
}

func (c *Coordinator) updateSettings(cmd UpdateSettings) ([]Event, error) {
	if _, err := c.instructor(cmd.UserID); err != nil {
		return nil, err
	}
	if err := cmd.Patch.Validate(); err != nil {
		return nil, err
	}

	c.session.Settings = c.session.Settings.Merge(cmd.Patch)
	events := []Event{toAll(types.EventSessionSettingsUpdated, c.session.Settings)}
	if !c.session.Settings.EnableRecording {
		if state, stopped := c.interactions.StopRecording(); stopped {
			events = append(events, toAll(types.EventRecordingStopped, state))
		}
	}
	return events, nil
}

func (c *Coordinator) setRecording(userID string, on bool, now time.Time) ([]Event, error) {
	if _, err := c.instructor(userID); err != nil {
		return nil, err
	}

	if !on {
		state, changed := c.interactions.StopRecording()
		if !changed {
			return nil, nil
		}
		return []Event{toAll(types.EventRecordingStopped, state)}, nil
	}

	if !c.session.Settings.EnableRecording {
		return nil, ErrRecordingDisabled
	}
	state, changed := c.interactions.StartRecording(now)
	if !changed {
		return nil, nil
	}
	return []Event{toAll(types.EventRecordingStarted, state)}, nil
}

// end is the single cancellation point of a session
func (c *Coordinator) end(reason string, now time.Time) []Event {
	var events []Event
	for _, id := range c.interactions.HandQueue() {
		c.roster.SetHandRaised(id, false)
	}
	closed, stopped := c.interactions.Shutdown(now)
	if closed != nil {
		events = append(events, toAll(types.EventPollEnded, *closed))
	}
	if stopped {
		events = append(events, toAll(types.EventRecordingStopped, c.interactions.Recording()))
	}

	end := now
	c.session.Status = types.StatusEnded
	c.session.EndTime = &end
	c.session.EndReason = reason

	return append(events, toAll(types.EventSessionEnded, types.SessionEndedPayload{
		SessionID: c.session.ID,
		Reason:    reason,
	}))
}

func (c *Coordinator) sessionCopy() types.Session {
	s := c.session
	if s.EndTime != nil {
		t := *s.EndTime
		s.EndTime = &t
	}
	return s
}

func (c *Coordinator) snapshot() types.SessionState {
	return types.SessionState{
		Session:       c.sessionCopy(),
		Document:      c.doc.Current(),
		Participants:  c.roster.List(),
		ActivePoll:    c.interactions.ActivePoll(),
		Polls:         c.interactions.Polls(),
		BreakoutRooms: c.interactions.Rooms(),
		HandQueue:     c.interactions.HandQueue(),
		Recording:     c.interactions.Recording(),
	}
}

// Snapshot returns the full current state
func (c *Coordinator) Snapshot() types.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Session returns the session record
func (c *Coordinator) Session() types.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionCopy()
}

// Summary returns the listActive view
func (c *Coordinator) Summary() types.SessionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return types.SessionSummary{
		ID:               c.session.ID,
		Name:             c.session.Name,
		HostID:           c.session.HostID,
		Status:           c.session.Status,
		ParticipantCount: c.roster.Len(),
		HasPassword:      c.password != "",
		StartTime:        c.session.StartTime,
	}
}

// IdleSince reports when the roster last became empty. ok is false while
// anyone is present.
func (c *Coordinator) IdleSince() (since time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roster.Len() > 0 {
		return time.Time{}, false
	}
	return c.idleSince, true
}

// Analytics returns the session's analytics log
func (c *Coordinator) Analytics() []types.AnalyticsEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analytics.Events()
}

// HasParticipant reports roster membership
func (c *Coordinator) HasParticipant(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.Has(userID)
}

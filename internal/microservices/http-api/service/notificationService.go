package service

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "strings"
    "sync"
    "time"

    "conventionhub/internal/i18n"
    "conventionhub/internal/microservices/delivery"
    "conventionhub/internal/microservices/http-api/models"
    "conventionhub/internal/microservices/http-api/repository"
    "conventionhub/internal/microservices/realtime"

    "golang.org/x/sync/errgroup"
)

const (
    defaultListLimit       = 20
    maxListLimit           = 100
    defaultDispatchTimeout = 15 * time.Second
)

// Notifier pushes an event to every live connection of a user.
// *realtime.Registry implements it.
type Notifier interface {
    NotifyUser(userID string, ev realtime.Event) bool
}

// CreateInput is what a domain event hands to the orchestrator
type CreateInput struct {
    UserID     string         `json:"user_id"`
    Kind       models.Kind    `json:"type"`
    Category   string         `json:"category,omitempty"`
    EntityType string         `json:"entity_type,omitempty"`
    EntityID   string         `json:"entity_id,omitempty"`
    ActionURL  string         `json:"action_url,omitempty"`
    Content    models.Content `json:"content"`
}

// NotificationPayload is the stream representation: the record plus its
// text resolved for the recipient
type NotificationPayload struct {
    models.Notification
    Title      string `json:"title"`
    Message    string `json:"message"`
    ActionText string `json:"action_text,omitempty"`
}

type NotificationService interface {
    // Create returns (nil, nil) when the user disabled the category
    Create(ctx context.Context, in CreateInput) (*models.Notification, error)
    CreateForUsers(ctx context.Context, userIDs []string, in CreateInput) ([]*models.Notification, error)
    GetForUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
    MarkAsRead(ctx context.Context, id, userID string) error
    MarkAsUnread(ctx context.Context, id, userID string) error
    MarkAllAsRead(ctx context.Context, userID string, category *string) (int64, error)
    Delete(ctx context.Context, id, userID string) error
    Cleanup(ctx context.Context, maxAgeDays int) (int64, error)
    GetUnreadCount(ctx context.Context, userID string, category *string) (int64, error)
    GetStats(ctx context.Context, userID string) (*models.NotificationStats, error)
    PushUnreadCount(ctx context.Context, userID string)
    // Drain waits for channel deliveries still in flight
    Drain()
}

// NotificationDeps are the collaborators of the orchestrator. Push and Email
// may be nil, the channel is then skipped.
type NotificationDeps struct {
    Repo            repository.NotificationRepository
    Users           repository.UserRepository
    Preferences     PreferenceService
    Notifier        Notifier
    Push            delivery.PushSender
    Email           delivery.EmailSender
    Translator      i18n.Resolver
    DefaultLanguage string
    PublicBaseURL   string
    DispatchTimeout time.Duration
    Logger          *slog.Logger
    Now             func() time.Time
}

type notificationService struct {
    NotificationDeps
    inflight sync.WaitGroup
}

func NewNotificationService(deps NotificationDeps) NotificationService {
    if deps.Logger == nil {
        deps.Logger = slog.Default()
    }
    if deps.Now == nil {
        deps.Now = time.Now
    }
    if deps.DispatchTimeout <= 0 {
        deps.DispatchTimeout = defaultDispatchTimeout
    }
    if deps.DefaultLanguage == "" {
        deps.DefaultLanguage = "en"
    }
    return &notificationService{NotificationDeps: deps}
}

func (s *notificationService) Create(ctx context.Context, in CreateInput) (*models.Notification, error) {
    if strings.TrimSpace(in.UserID) == "" {
        return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
    }
    if err := in.Content.Validate(); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
    }
    if in.Kind == "" {
        in.Kind = models.KindInfo
    }

    if in.Category != "" {
        allowed, err := s.Preferences.IsAllowed(ctx, in.UserID, in.Category)
        if err != nil {
            return nil, err
        }
        if !allowed {
            s.Logger.Debug("notification_suppressed", "user_id", in.UserID, "category", in.Category)
            return nil, nil
        }
    }

    n := &models.Notification{
        UserID:     in.UserID,
        Kind:       in.Kind,
        Category:   optionalString(in.Category),
        EntityType: optionalString(in.EntityType),
        EntityID:   optionalString(in.EntityID),
        ActionURL:  optionalString(in.ActionURL),
        CreatedAt:  s.Now(),
    }
    n.SetContent(in.Content)

    if err := s.Repo.Create(ctx, n); err != nil {
        return nil, fmt.Errorf("create notification: %w", err)
    }

    s.dispatch(ctx, *n)
    return n, nil
}

// CreateForUsers gates and persists per recipient; a store failure for one
// user does not stop the others, the errors are joined
func (s *notificationService) CreateForUsers(ctx context.Context, userIDs []string, in CreateInput) ([]*models.Notification, error) {
    if err := in.Content.Validate(); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
    }

    created := make([]*models.Notification, 0, len(userIDs))
    seen := make(map[string]struct{}, len(userIDs))
    var errs []error
    for _, id := range userIDs {
        if _, dup := seen[id]; dup {
            continue
        }
        seen[id] = struct{}{}

        one := in
        one.UserID = id
        n, err := s.Create(ctx, one)
        if err != nil {
            errs = append(errs, fmt.Errorf("user %s: %w", id, err))
            continue
        }
        if n != nil {
            created = append(created, n)
        }
    }
    return created, errors.Join(errs...)
}

func (s *notificationService) GetForUser(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
    if filter.Limit <= 0 {
        filter.Limit = defaultListLimit
    }
    if filter.Limit > maxListLimit {
        filter.Limit = maxListLimit
    }
    if filter.Offset < 0 {
        filter.Offset = 0
    }
    return s.Repo.List(ctx, filter)
}

func (s *notificationService) MarkAsRead(ctx context.Context, id, userID string) error {
    if err := s.Repo.SetRead(ctx, id, userID, true, s.Now()); err != nil {
        return err
    }
    s.PushUnreadCount(ctx, userID)
    return nil
}

func (s *notificationService) MarkAsUnread(ctx context.Context, id, userID string) error {
    if err := s.Repo.SetRead(ctx, id, userID, false, s.Now()); err != nil {
        return err
    }
    s.PushUnreadCount(ctx, userID)
    return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string, category *string) (int64, error) {
    count, err := s.Repo.MarkAllAsRead(ctx, userID, category, s.Now())
    if err != nil {
        return 0, err
    }
    if count > 0 {
        s.PushUnreadCount(ctx, userID)
    }
    return count, nil
}

func (s *notificationService) Delete(ctx context.Context, id, userID string) error {
    if err := s.Repo.Delete(ctx, id, userID); err != nil {
        return err
    }
    s.PushUnreadCount(ctx, userID)
    return nil
}

// Cleanup removes read notifications older than maxAgeDays
func (s *notificationService) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
    if maxAgeDays < 1 {
        return 0, fmt.Errorf("%w: max age must be at least one day", ErrInvalidInput)
    }
    cutoff := s.Now().AddDate(0, 0, -maxAgeDays)
    deleted, err := s.Repo.DeleteReadOlderThan(ctx, cutoff)
    if err != nil {
        return 0, err
    }
    s.Logger.Info("notifications_cleaned", "deleted", deleted, "cutoff", cutoff)
    return deleted, nil
}

func (s *notificationService) GetUnreadCount(ctx context.Context, userID string, category *string) (int64, error) {
    return s.Repo.CountUnread(ctx, userID, category)
}

func (s *notificationService) GetStats(ctx context.Context, userID string) (*models.NotificationStats, error) {
    return s.Repo.Stats(ctx, userID)
}

// PushUnreadCount recomputes the unread badge and pushes it, best effort
func (s *notificationService) PushUnreadCount(ctx context.Context, userID string) {
    count, err := s.Repo.CountUnread(ctx, userID, nil)
    if err != nil {
        s.Logger.Warn("unread_count_failed", "user_id", userID, "error", err)
        return
    }
    ev, err := realtime.NewEvent(realtime.EventNotificationCount, map[string]int64{"unreadCount": count})
    if err != nil {
        return
    }
    s.Notifier.NotifyUser(userID, ev)
}

func (s *notificationService) Drain() {
    s.inflight.Wait()
}

// dispatch runs the three channels detached from the caller. Each channel
// logs its own failure; none of them can fail the create.
func (s *notificationService) dispatch(parent context.Context, n models.Notification) {
    s.inflight.Add(1)
    go func() {
        defer s.inflight.Done()

        ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.DispatchTimeout)
        defer cancel()

        lang := s.DefaultLanguage
        var email string
        user, err := s.Users.FindByID(ctx, n.UserID)
        if err != nil {
            s.Logger.Warn("recipient_lookup_failed", "user_id", n.UserID, "error", err)
        } else {
            if user.PreferredLanguage != "" {
                lang = user.PreferredLanguage
            }
            email = user.Email
        }

        var g errgroup.Group
        s.runChannel(&g, "stream", n, func() error { return s.deliverStream(n, lang) })
        if s.Push != nil {
            s.runChannel(&g, "push", n, func() error { return s.deliverPush(ctx, n, lang) })
        }
        if s.Email != nil && email != "" {
            s.runChannel(&g, "email", n, func() error { return s.deliverEmail(ctx, n, lang, email) })
        }
        _ = g.Wait()
    }()
}

// runChannel isolates one channel: errors and panics are logged, never returned
func (s *notificationService) runChannel(g *errgroup.Group, name string, n models.Notification, fn func() error) {
    g.Go(func() (err error) {
        defer func() {
            if r := recover(); r != nil {
                err = fmt.Errorf("panic: %v", r)
            }
            if err != nil {
                s.Logger.Warn("channel_delivery_failed",
                    "channel", name,
                    "notification_id", n.ID,
                    "user_id", n.UserID,
                    "error", err)
            }
            err = nil
        }()
        return fn()
    })
}

func (s *notificationService) deliverStream(n models.Notification, lang string) error {
    text, err := s.resolve(n, lang)
    if err != nil {
        return err
    }
    ev, err := realtime.NewEvent(realtime.EventNotification, NotificationPayload{
        Notification: n,
        Title:        text.Title,
        Message:      text.Message,
        ActionText:   text.ActionText,
    })
    if err != nil {
        return err
    }
    if !s.Notifier.NotifyUser(n.UserID, ev) {
        s.Logger.Debug("stream_no_live_connection", "user_id", n.UserID, "notification_id", n.ID)
    }
    return nil
}

func (s *notificationService) deliverPush(ctx context.Context, n models.Notification, lang string) error {
    text, err := s.resolve(n, lang)
    if err != nil {
        return err
    }
    data := map[string]any{"notificationId": n.ID, "type": string(n.Kind)}
    if n.Category != nil {
        data["category"] = *n.Category
    }
    if n.ActionURL != nil {
        data["actionUrl"] = *n.ActionURL
    }
    ok, err := s.Push.Send(ctx, delivery.PushMessage{
        UserID: n.UserID,
        Title:  text.Title,
        Body:   text.Message,
        Data:   data,
    })
    if errors.Is(err, delivery.ErrNoPushTokens) {
        return nil
    }
    if err != nil {
        return err
    }
    if !ok {
        return errors.New("push not accepted by any device")
    }
    return nil
}

func (s *notificationService) deliverEmail(ctx context.Context, n models.Notification, lang, to string) error {
    if n.Category != nil {
        allowed, err := s.Preferences.IsEmailAllowed(ctx, n.UserID, *n.Category)
        if err != nil {
            return err
        }
        if !allowed {
            return nil
        }
    }

    text, err := s.resolve(n, lang)
    if err != nil {
        return err
    }
    tag := "notification"
    if n.Category != nil {
        tag = *n.Category
    }
    msg, err := delivery.RenderEmail(to, tag, delivery.EmailContent{
        Title:      text.Title,
        Message:    text.Message,
        ActionText: text.ActionText,
        ActionURL:  s.absoluteURL(n.ActionURL),
    })
    if err != nil {
        return err
    }
    ok, err := s.Email.Send(ctx, msg)
    if err != nil {
        return err
    }
    if !ok {
        return errors.New("email not accepted")
    }
    return nil
}

func (s *notificationService) absoluteURL(u *string) string {
    if u == nil || *u == "" {
        return ""
    }
    if strings.HasPrefix(*u, "http://") || strings.HasPrefix(*u, "https://") || s.PublicBaseURL == "" {
        return *u
    }
    return strings.TrimRight(s.PublicBaseURL, "/") + "/" + strings.TrimLeft(*u, "/")
}

type resolvedText struct {
    Title      string
    Message    string
    ActionText string
}

// resolve applies the per field rule: a translation key wins, the literal
// is used otherwise, and also when the key cannot be translated
func (s *notificationService) resolve(n models.Notification, lang string) (resolvedText, error) {
    var out resolvedText
    var err error
    if out.Title, err = s.resolveField(n.TitleKey, n.TitleText, n.Params, lang); err != nil {
        return out, fmt.Errorf("title: %w", err)
    }
    if out.Message, err = s.resolveField(n.MessageKey, n.MessageText, n.Params, lang); err != nil {
        return out, fmt.Errorf("message: %w", err)
    }
    if out.ActionText, err = s.resolveField(n.ActionTextKey, n.ActionText, n.Params, lang); err != nil {
        // action text is optional, drop it rather than the whole delivery
        out.ActionText = ""
    }
    return out, nil
}

func (s *notificationService) resolveField(key, literal *string, params map[string]any, lang string) (string, error) {
    if key != nil && *key != "" {
        text, err := s.Translator.Translate(*key, params, lang)
        if err == nil {
            return text, nil
        }
        if literal != nil && *literal != "" {
            return *literal, nil
        }
        return "", err
    }
    if literal != nil {
        return *literal, nil
    }
    return "", nil
}

func optionalString(s string) *string {
    if s == "" {
        return nil
    }
    return &s
}

package entity

// SubscriberState состояние подписки оператора на уведомления
type SubscriberState string

const (
	StateUnsubscribed SubscriberState = "unsubscribed" // уведомления выключены
	StateSubscribed   SubscriberState = "subscribed"   // получает события о дефектах
)

// Subscriber оператор линии, управляющий детекцией через бота
type Subscriber struct {
	ID     int64           // Telegram User ID
	ChatID int64           // Telegram Chat ID
	State  SubscriberState // Текущее состояние подписки
}

// NewSubscriber создаёт оператора без подписки
func NewSubscriber(userID, chatID int64) *Subscriber {
	return &Subscriber{
		ID:     userID,
		ChatID: chatID,
		State:  StateUnsubscribed,
	}
}

// SetState обновляет состояние подписки
func (s *Subscriber) SetState(state SubscriberState) {
	s.State = state
}

// Subscribed сообщает, нужно ли отправлять оператору события
func (s *Subscriber) Subscribed() bool {
	return s.State == StateSubscribed
}

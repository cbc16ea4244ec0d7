package notification

// manager implements NotificationManager
type manager struct {
	channels        []NotificationChannel
	enabled         bool
	commandExecutor CommandExecutor
	platform        string
	sendCallback    func(Notification)
}

// NewManager creates a new NotificationManager based on configuration
func NewManager(cfg *Config, opts ...Option) (NotificationManager, error) {
	m := &manager{
		channels: []NotificationChannel{},
		enabled:  cfg.Enabled,
	}

	for _, opt := range opts {
		opt(m)
	}

	if !cfg.Enabled {
		return m, nil
	}

	if cfg.OSNotification.Enabled {
		var osOpts []Option
		if m.commandExecutor != nil {
			osOpts = append(osOpts, WithCommandExecutor(m.commandExecutor))
		}
		if m.platform != "" {
			osOpts = append(osOpts, WithPlatform(m.platform))
		}
		m.channels = append(m.channels, NewOSNotificationChannel(&cfg.OSNotification, osOpts...))
	}

	if cfg.LogNotification.Enabled && cfg.LogNotification.Path != "" {
		m.channels = append(m.channels, NewLogNotificationChannel(&cfg.LogNotification))
	}

	return m, nil
}

// Send dispatches notification to all enabled channels
func (m *manager) Send(n Notification) error {
	if !m.enabled {
		return nil
	}
	if m.sendCallback != nil {
		m.sendCallback(n)
	}

	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SendAsync dispatches notification without blocking
func (m *manager) SendAsync(n Notification) {
	go func() {
		_ = m.Send(n)
	}()
}

// Close cleans up resources
func (m *manager) Close() error {
	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ChannelCount returns the number of active channels
func (m *manager) ChannelCount() int {
	return len(m.channels)
}

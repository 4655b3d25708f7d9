package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// feedAuth admits websocket upgrades carrying a valid ?token=.
func (s *Server) feedAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	if c.Query("token") == "" {
		return errNoCredentials
	}

	if _, err := s.auth.Verify(c.Query("token")); err != nil {
		return errInvalidToken
	}

	return c.Next()
}

// orderFeed streams order change events until the client goes away or the
// hub closes.
func (s *Server) orderFeed(c *websocket.Conn) {
	defer c.Close()

	if !s.trackFeed() {
		return
	}
	defer s.wsWg.Done()

	events, release := s.hub.Subscribe()
	defer release()

	logrus.WithField("subscribers", s.hub.Len()).Debug("order feed connected")

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case e, ok := <-events:
			if !ok {
				return
			}

			if err := c.WriteJSON(e); err != nil {
				logrus.WithError(err).Debug("order feed write failed")
				return
			}
		}
	}
}

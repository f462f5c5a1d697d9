package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"konnect/internal/crypto"
	"konnect/internal/domain"
)

const (
	defaultFetchLimit = 100
	maxFetchLimit     = 500
)

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "keyId": s.keys.Current().KeyID})
}

// publicKey returns the current server key, rotating it first when due.
func (s *Server) publicKey(c *gin.Context) {
	if rotated, err := s.keys.Reroll(); err != nil {
		s.log.Warnf("reroll server key: %v", err)
	} else if rotated {
		s.log.Infof("server key rotated to %s", s.keys.Current().KeyID)
	}
	c.JSON(http.StatusOK, s.keys.Current())
}

// exchange wraps the caller's session key to the presented ephemeral key.
func (s *Server) exchange(c *gin.Context) {
	var in domain.KeyExchangeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	if _, err := crypto.ParsePublicKey(in.PublicKey); err != nil {
		apiErrorf(c, http.StatusBadRequest, "invalid public key")
		return
	}
	k, id, err := s.sessions.For(caller(c))
	if err != nil {
		apiErrorf(c, http.StatusInternalServerError, "cannot derive session key")
		return
	}
	defer crypto.Wipe(k)

	wrapped, err := crypto.Wrap(k, in.PublicKey)
	if err != nil {
		apiErrorf(c, http.StatusInternalServerError, "cannot wrap session key")
		return
	}
	c.JSON(http.StatusOK, domain.KeyExchangeResponse{Key: crypto.B64(wrapped), KeyID: id})
}

func (s *Server) register(c *gin.Context) {
	var in domain.RegisterKeyRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	if _, err := crypto.ParsePublicKey(in.PublicKey); err != nil {
		apiErrorf(c, http.StatusBadRequest, "invalid public key")
		return
	}
	who := caller(c)
	s.state.register(who, in.PublicKey)
	s.log.WithField("user", who.String()).Infof("registered public key")
	c.Status(http.StatusNoContent)
}

func (s *Server) userKey(c *gin.Context) {
	var in domain.RecipientKeyRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	who, err := domain.ParseIdentity(in.Identity)
	if err != nil {
		apiErrorf(c, http.StatusBadRequest, "%s", err)
		return
	}
	pub, ok := s.state.publicKey(who)
	if !ok {
		apiErrorf(c, http.StatusNotFound, "no public key for %s", who)
		return
	}
	c.JSON(http.StatusOK, domain.RecipientKeyResponse{Key: pub})
}

func (s *Server) groupKeys(c *gin.Context) {
	var in domain.GroupKeysRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	keys, ok := s.state.groupKeys(in.GroupID)
	if !ok {
		apiErrorf(c, http.StatusNotFound, "unknown group %s", in.GroupID)
		return
	}
	c.JSON(http.StatusOK, domain.GroupKeysResponse{Keys: keys})
}

// putBackup replaces the caller's key backup. The server only checks the
// sealed blob is an envelope; it cannot open it.
func (s *Server) putBackup(c *gin.Context) {
	var in domain.KeyBackup
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	if in.V != domain.KeyBackupVersion {
		apiErrorf(c, http.StatusBadRequest, "unsupported backup version %d", in.V)
		return
	}
	if _, err := crypto.DecodeEnvelope(in.Sealed); err != nil {
		apiErrorf(c, http.StatusBadRequest, "sealed backup is not an envelope")
		return
	}
	in.UpdatedAt = s.now().Unix()
	who := caller(c)
	s.state.putBackup(who, in)
	s.log.WithField("user", who.String()).Infof("stored key backup")
	c.Status(http.StatusNoContent)
}

func (s *Server) getBackup(c *gin.Context) {
	b, ok := s.state.backup(caller(c))
	if !ok {
		apiErrorf(c, http.StatusNotFound, "no key backup for %s", caller(c))
		return
	}
	c.JSON(http.StatusOK, b)
}

// setGroup replaces a group's members. Admin only.
func (s *Server) setGroup(c *gin.Context) {
	if caller(c).Type != domain.UserAdmin {
		apiErrorf(c, http.StatusForbidden, "only admins can change groups")
		return
	}
	var in domain.GroupMembersRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	members := make([]domain.Identity, 0, len(in.Members))
	for _, m := range in.Members {
		who, err := domain.ParseIdentity(m)
		if err != nil {
			apiErrorf(c, http.StatusBadRequest, "%s", err)
			return
		}
		members = append(members, who)
	}
	g := domain.GroupID(c.Param("id"))
	s.state.setGroup(g, members)
	s.log.WithField("group", g.String()).Infof("group set to %d members", len(members))
	c.Status(http.StatusNoContent)
}

// publish routes one batch of envelopes. Every envelope is checked before
// any is queued, so a batch is accepted whole or not at all.
func (s *Server) publish(c *gin.Context) {
	var envs []domain.MessageEnvelope
	if err := c.ShouldBindJSON(&envs); err != nil {
		bindError(c, err)
		return
	}
	if len(envs) == 0 {
		apiErrorf(c, http.StatusBadRequest, "empty batch")
		return
	}
	who := caller(c)
	sk, _, err := s.sessions.For(who)
	if err != nil {
		apiErrorf(c, http.StatusInternalServerError, "cannot derive session key")
		return
	}
	defer crypto.Wipe(sk)

	entries := make([]queued, 0, len(envs))
	for i, env := range envs {
		if env.Message == "" || env.Key == "" {
			apiErrorf(c, http.StatusBadRequest, "envelope %d: missing message or key", i)
			return
		}
		from, err := openIdentity(sk, env.Sender, domain.RoutingAADSender)
		if err != nil {
			apiErrorf(c, http.StatusBadRequest, "envelope %d: unreadable sender", i)
			return
		}
		if from != who {
			apiErrorf(c, http.StatusForbidden, "envelope %d: sender is not the caller", i)
			return
		}
		to, err := openIdentity(sk, env.Receiver, domain.RoutingAADReceiver)
		if err != nil {
			apiErrorf(c, http.StatusBadRequest, "envelope %d: unreadable receiver", i)
			return
		}
		var group domain.GroupID
		if env.Group != "" {
			raw, err := crypto.OpenToken(sk, env.Group, []byte(domain.RoutingAADGroup))
			if err != nil {
				apiErrorf(c, http.StatusBadRequest, "envelope %d: unreadable group", i)
				return
			}
			group = domain.GroupID(raw)
			if !s.state.isMember(group, from) || !s.state.isMember(group, to) {
				apiErrorf(c, http.StatusForbidden, "envelope %d: not a member of group %s", i, group)
				return
			}
		}
		ts := env.Timestamp
		if ts == 0 {
			ts = s.now().Unix()
		}
		entries = append(entries, queued{
			ID:        env.ID,
			Message:   env.Message,
			Key:       env.Key,
			From:      from,
			To:        to,
			Group:     group,
			Timestamp: ts,
		})
	}
	s.state.enqueue(entries)
	s.log.WithField("user", who.String()).Debugf("queued %d envelopes", len(entries))
	c.Status(http.StatusNoContent)
}

// fetch returns the caller's queue with routing tokens sealed under the
// caller's own session key.
func (s *Server) fetch(c *gin.Context) {
	limit := defaultFetchLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			apiErrorf(c, http.StatusBadRequest, "invalid limit %q", q)
			return
		}
		if n > 0 {
			limit = n
		}
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}

	who := caller(c)
	sk, _, err := s.sessions.For(who)
	if err != nil {
		apiErrorf(c, http.StatusInternalServerError, "cannot derive session key")
		return
	}
	defer crypto.Wipe(sk)

	entries := s.state.peek(who, limit)
	out := make([]domain.MessageEnvelope, 0, len(entries))
	for _, e := range entries {
		env, err := reseal(sk, e)
		if err != nil {
			apiErrorf(c, http.StatusInternalServerError, "cannot seal routing tokens")
			return
		}
		out = append(out, env)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) ack(c *gin.Context) {
	var in domain.AckRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	if in.Count < 0 {
		apiErrorf(c, http.StatusBadRequest, "negative count")
		return
	}
	n := s.state.ack(caller(c), in.Count)
	c.JSON(http.StatusOK, gin.H{"acked": n})
}

// echo returns the opened request body. It exercises the enveloped API path.
func (s *Server) echo(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		apiErrorf(c, http.StatusBadRequest, "cannot read body")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (s *Server) whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"identity": caller(c).String(), "time": s.now().UTC().Format(time.RFC3339)})
}

func openIdentity(key []byte, token, aad string) (domain.Identity, error) {
	raw, err := crypto.OpenToken(key, token, []byte(aad))
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.ParseIdentity(string(raw))
}

func reseal(key []byte, e queued) (domain.MessageEnvelope, error) {
	sender, err := crypto.SealToken(key, []byte(e.From.String()), []byte(domain.RoutingAADSender))
	if err != nil {
		return domain.MessageEnvelope{}, err
	}
	receiver, err := crypto.SealToken(key, []byte(e.To.String()), []byte(domain.RoutingAADReceiver))
	if err != nil {
		return domain.MessageEnvelope{}, err
	}
	var group string
	if e.Group != "" {
		if group, err = crypto.SealToken(key, []byte(e.Group), []byte(domain.RoutingAADGroup)); err != nil {
			return domain.MessageEnvelope{}, err
		}
	}
	return domain.MessageEnvelope{
		ID:        e.ID,
		Message:   e.Message,
		Key:       e.Key,
		Sender:    sender,
		Receiver:  receiver,
		Group:     group,
		Timestamp: e.Timestamp,
	}, nil
}

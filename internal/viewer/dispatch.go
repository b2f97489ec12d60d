package viewer

import (
	"context"

	"go.uber.org/zap"
)

// dispatch routes one inbound socket event. Pointer events resolve to at
// most one node; the topmost drawn node wins on overlap.
func (s *Server) dispatch(ctx context.Context, c *wsConn, in inbound) {
	switch in.Type {
	case "pointer":
		node, ok := s.renderer.HitTest(in.X, in.Y)
		if !ok {
			c.send(outbound{Type: "deselected"})
			return
		}
		c.send(outbound{
			Type:   "selected",
			NodeID: node.ID,
			Label:  node.Label,
			Status: node.Status,
		})
	case "chat":
		if s.chat == nil {
			c.send(outbound{Type: "error", Message: "chat is not configured"})
			return
		}
		fileID := in.FileID
		if fileID == "" {
			if set, ok := s.store.Current(); ok {
				fileID = set.FileID
			}
		}
		answer, err := s.chat.Query(ctx, in.Query, fileID)
		if err != nil && answer == nil {
			s.logger.Warn("chat query failed", zap.Error(err))
			c.send(outbound{Type: "error", Message: "chat query failed"})
			return
		}
		c.send(outbound{Type: "chat", Text: answer.Text})
	default:
		c.send(outbound{Type: "error", Message: "unknown event type"})
	}
}

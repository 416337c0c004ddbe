package network

// inbox holds inbound chat lines while their senders' ratings are looked
// up, so every topic's history keeps arrival order even when lookups finish
// out of order. Owned by the event loop.
type inbox struct {
	order map[string][]QueryID
	ready map[QueryID]string
}

func newInbox() *inbox {
	return &inbox{
		order: make(map[string][]QueryID),
		ready: make(map[QueryID]string),
	}
}

// wait reserves the next slot of topic for the lookup id.
func (b *inbox) wait(topic string, id QueryID) {
	b.order[topic] = append(b.order[topic], id)
}

// resolve fills the slot of id and returns the lines of topic that can now
// be appended, oldest first.
func (b *inbox) resolve(topic string, id QueryID, line string) []string {
	b.ready[id] = line
	queue := b.order[topic]
	var out []string
	for len(queue) > 0 {
		next, ok := b.ready[queue[0]]
		if !ok {
			break
		}
		delete(b.ready, queue[0])
		out = append(out, next)
		queue = queue[1:]
	}
	if len(queue) == 0 {
		delete(b.order, topic)
	} else {
		b.order[topic] = queue
	}
	return out
}

// waiting is the number of lines held back.
func (b *inbox) waiting() int {
	n := 0
	for _, queue := range b.order {
		n += len(queue)
	}
	return n
}

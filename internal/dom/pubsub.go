package dom

// Subscribe creates a new subscription and returns a channel of patches.
//
// The returned channel has a buffer of 100 patches. If the buffer fills
// (slow consumer), new patches are dropped for this subscriber.
//
// Caller must call [Document.Unsubscribe] when done to prevent resource leaks.
func (d *Document) Subscribe() <-chan Patch {
	ch := make(chan Patch, subscriberBuffer)

	d.subMu.Lock()
	d.subscribers[ch] = struct{}{}
	d.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (d *Document) Unsubscribe(ch <-chan Patch) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	for subCh := range d.subscribers {
		if subCh == ch {
			delete(d.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// publish sends patches to all subscribers without blocking.
func (d *Document) publish(patches []Patch) {
	if len(patches) == 0 {
		return
	}

	d.subMu.RLock()
	defer d.subMu.RUnlock()

	for ch := range d.subscribers {
		for _, p := range patches {
			select {
			case ch <- p:
			default:
				// subscriber is slow, drop the patch
			}
		}
	}
}

/*
Package rowdb implements typed tables on top of an ordered key-value store
(Bolt by default; Pebble, Badger and an in-memory B-tree are also available).

We implement:

1. Tables, collections of records of one Go type, marshaled with a Codec
(MsgPack by default) and addressed by auto-incrementing uint64 keys.

2. Key handles. KeyRef is bound to the table that produced it and is rejected
by any other table; Key is detached and safe to store inside other records.

3. Update, a single call that inserts, modifies or deletes a row depending on
what the callback returns.

# Technical Details

**Substrate.**
Everything is built from five primitives of the underlying store: get, insert,
remove, atomic fetch-and-update of one key, and ordered prefix scan. There are
no buckets; tables are separated by key prefixes.

**Key layout.**
Table N owns two regions:

  - "/t/N/next_key/" holds the counter, the next key to allocate, as 8 bytes
    little-endian.
  - "/t/N/i/" + encoded key holds each row.

Keys are encoded as 8 big-endian bytes, so scans return rows in numeric order.
Stores written with the older decimal layout ("/t/N/i/42") can be opened with
Options.KeyEncoding set to DecimalKeys.

**Counter.**
Push allocates keys with one fetch-and-update of the counter, so concurrent
pushes never collide. The counter only grows: keys of deleted rows are never
reused, and a Set or Update that writes a row beyond the counter raises it past
that key.

**Atomicity.**
Update runs its read, callback and write inside one fetch-and-update of the
row's key, so concurrent updates of the same row are not lost. Push and Set
touch the counter and the row in two separate steps.
*/
package rowdb

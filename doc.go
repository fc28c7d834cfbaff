// Package modelsync keeps multiple independent observers of a shared,
// tree-structured domain model in sync whenever any node of any observer's
// tree changes.
//
// An application owns one Dispatcher. Each observer subscribes with a
// weakly held handle (Wrap) against whatever root Model it currently
// displays; Publish and Delete then propagate a patch through every
// subscribed observer's own tree independently, via the Rewriter, and
// deliver the resulting delta through the configured Scheduler. Observers
// may Pause to buffer updates instead of receiving them, and Resume later
// to receive the accumulated, reconciled delta in one delivery.
//
// See Dispatcher for the full API, and the treemodel package for a
// reference Model/Observer implementation suitable for tests.
package modelsync

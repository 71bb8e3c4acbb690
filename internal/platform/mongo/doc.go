// Package mongo implements the store interfaces on MongoDB, the document
// store the task tracker was first built on. Tasks keep their original
// document shape: the owner's email lives in "email" and the rank in "order".
package mongo

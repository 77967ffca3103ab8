package vgroup

const VERSION = "0.3.0"

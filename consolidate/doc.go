// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package consolidate turns the clusters of one category into master questions.
//
// Every cluster elects exactly one representative and mints a master ID of
// the form <CATEGORY>_<NNNN>, numbered from 1 in ascending cluster ID order.
// All members point at the master, and the master records the member count.
//
// # Representative Policies
//
//   - PolicyFirstByID (default): the member with the smallest question ID.
//   - PolicyMedoid: the member with the smallest average cosine distance to
//     the other members; ties go to the smallest question ID. Members without
//     a vector are not candidates. When no member has a vector the policy
//     falls back to the smallest question ID.
//
// # Persistence
//
// Apply hands the whole plan to storage.MasterRepository.ReplaceCategory,
// which supersedes the category's previous cluster and master state in one
// transaction. Each run is recorded with a BLAKE2b fingerprint of its
// assignments, so two runs over unchanged input can be compared directly.
package consolidate
